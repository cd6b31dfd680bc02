package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/seantiz/prospect/internal/model"
)

// Builtin task-type tags.
const (
	TypeHypothesis = "hypothesis"
	TypeSynthesis  = "synthesis"
)

// templateInput is the JSON shape the builtin handlers expect. Unknown fields
// are ignored so callers can pass richer payloads through untouched.
type templateInput struct {
	Topic   string   `json:"topic"`
	Context string   `json:"context"`
	Sources []string `json:"sources"`
}

var hypothesisTmpl = template.Must(template.New("hypothesis").Parse(
	`Working hypothesis for {{.Topic}}: the observed behavior is explained by ` +
		`{{if .Context}}{{.Context}}{{else}}factors not yet in evidence{{end}}. ` +
		`Confidence is provisional until cross-referenced against {{len .Sources}} source(s).`))

var synthesisTmpl = template.Must(template.New("synthesis").Parse(
	`Synthesis of {{len .Sources}} source(s) on {{.Topic}}: ` +
		`{{range $i, $s := .Sources}}{{if $i}}; {{end}}{{$s}}{{end}}` +
		`{{if not .Sources}}no sources supplied, synthesis is speculative{{end}}.`))

// RegisterBuiltins registers the templated text-generation handlers that ship
// with the server binary. They stand in for real computation: each renders a
// deterministic text from its input so the engine has something to execute.
func RegisterBuiltins(reg *Registry) {
	reg.Register(TypeHypothesis, &templateHandler{
		tmpl:       hypothesisTmpl,
		confidence: 0.6,
		relevance:  0.7,
	})
	reg.Register(TypeSynthesis, &templateHandler{
		tmpl:       synthesisTmpl,
		confidence: 0.8,
		relevance:  0.85,
	})
}

// templateHandler renders a text template from the exploration input and
// wraps it in a uniform Result.
type templateHandler struct {
	tmpl       *template.Template
	confidence float64
	relevance  float64
}

func (h *templateHandler) Explore(ctx context.Context, input json.RawMessage, params model.Parameters) (Result, error) {
	var in templateInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return Result{}, fmt.Errorf("decode input: %w", err)
		}
	}
	if in.Topic == "" {
		in.Topic = "the stated question"
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, in); err != nil {
		return Result{}, fmt.Errorf("render %s: %w", h.tmpl.Name(), err)
	}

	insights := make([]string, 0, len(in.Sources))
	for _, s := range in.Sources {
		insights = append(insights, fmt.Sprintf("source considered: %s", s))
	}

	return Result{
		Outcome:         map[string]string{"text": buf.String()},
		Confidence:      h.confidence,
		Reasoning:       buf.String(),
		Insights:        insights,
		CrossReferences: in.Sources,
		RelevanceScore:  h.relevance,
	}, nil
}

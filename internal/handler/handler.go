package handler

import (
	"context"
	"encoding/json"

	"github.com/seantiz/prospect/internal/model"
)

// Handler is the interface that all exploration handlers must implement.
// Each task type (hypothesis generation, synthesis, echo probes in tests)
// provides its own implementation.
type Handler interface {
	// Explore runs the exploration for the given opaque input and parameters.
	// The context carries the per-run deadline and the engine's cancellation
	// signal; cooperating handlers should return promptly once it is done.
	Explore(ctx context.Context, input json.RawMessage, params model.Parameters) (Result, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, input json.RawMessage, params model.Parameters) (Result, error)

// Explore calls f.
func (f HandlerFunc) Explore(ctx context.Context, input json.RawMessage, params model.Parameters) (Result, error) {
	return f(ctx, input, params)
}

// Result holds the structured return of a handler invocation. The engine
// copies these fields into the exploration's outcome record verbatim.
type Result struct {
	Outcome         interface{} `json:"outcome,omitempty"`
	Confidence      float64     `json:"confidence"`
	Reasoning       string      `json:"reasoning,omitempty"`
	Insights        []string    `json:"insights,omitempty"`
	CrossReferences []string    `json:"cross_references,omitempty"`
	Possibilities   []string    `json:"possibilities,omitempty"`
	RelevanceScore  float64     `json:"relevance_score"`
}

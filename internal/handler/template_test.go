package handler_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/seantiz/prospect/internal/handler"
	"github.com/seantiz/prospect/internal/model"
)

func resolveBuiltin(t *testing.T, typeTag string) handler.Handler {
	t.Helper()
	reg := handler.NewRegistry()
	handler.RegisterBuiltins(reg)
	h, err := reg.Resolve(typeTag)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", typeTag, err)
	}
	return h
}

func TestBuiltinsRegistered(t *testing.T) {
	reg := handler.NewRegistry()
	handler.RegisterBuiltins(reg)

	for _, tag := range []string{handler.TypeHypothesis, handler.TypeSynthesis} {
		if _, err := reg.Resolve(tag); err != nil {
			t.Errorf("builtin %q not registered: %v", tag, err)
		}
	}
}

func TestHypothesisHandler(t *testing.T) {
	h := resolveBuiltin(t, handler.TypeHypothesis)

	input := json.RawMessage(`{"topic":"cache misses","context":"cold start traffic","sources":["trace-1","trace-2"]}`)
	res, err := h.Explore(context.Background(), input, model.Parameters{})
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}

	if res.Confidence <= 0 {
		t.Errorf("confidence = %v, want > 0", res.Confidence)
	}
	if !strings.Contains(res.Reasoning, "cache misses") {
		t.Errorf("reasoning %q does not mention the topic", res.Reasoning)
	}
	if !strings.Contains(res.Reasoning, "cold start traffic") {
		t.Errorf("reasoning %q does not mention the context", res.Reasoning)
	}
	if len(res.Insights) != 2 {
		t.Errorf("insights = %d, want 2 (one per source)", len(res.Insights))
	}
	if len(res.CrossReferences) != 2 {
		t.Errorf("cross references = %d, want 2", len(res.CrossReferences))
	}
}

func TestSynthesisHandlerNoSources(t *testing.T) {
	h := resolveBuiltin(t, handler.TypeSynthesis)

	res, err := h.Explore(context.Background(), json.RawMessage(`{"topic":"latency"}`), model.Parameters{})
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if !strings.Contains(res.Reasoning, "speculative") {
		t.Errorf("reasoning %q should flag missing sources", res.Reasoning)
	}
}

func TestTemplateHandlerEmptyInput(t *testing.T) {
	h := resolveBuiltin(t, handler.TypeHypothesis)

	res, err := h.Explore(context.Background(), nil, model.Parameters{})
	if err != nil {
		t.Fatalf("Explore with nil input: %v", err)
	}
	if res.Reasoning == "" {
		t.Error("expected non-empty reasoning for empty input")
	}
}

func TestTemplateHandlerBadJSON(t *testing.T) {
	h := resolveBuiltin(t, handler.TypeHypothesis)

	_, err := h.Explore(context.Background(), json.RawMessage(`{not json`), model.Parameters{})
	if err == nil {
		t.Error("expected decode error for malformed input, got nil")
	}
}

func TestTemplateHandlerCancelledContext(t *testing.T) {
	h := resolveBuiltin(t, handler.TypeSynthesis)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Explore(ctx, json.RawMessage(`{"topic":"x"}`), model.Parameters{})
	if err == nil {
		t.Error("expected error from cancelled context, got nil")
	}
}

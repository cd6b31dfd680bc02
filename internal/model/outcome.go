package model

// Outcome holds the structured result a handler produced for an exploration.
// Exactly one Outcome exists per terminal exploration: a real one on
// completion, a zero-confidence one carrying the error text on failure, so
// callers always see a uniform shape.
type Outcome struct {
	ExplorationID   string      `json:"exploration_id"`
	Type            string      `json:"type"`
	Outcome         interface{} `json:"outcome,omitempty"`
	Confidence      float64     `json:"confidence"`
	Reasoning       string      `json:"reasoning,omitempty"`
	Insights        []string    `json:"insights,omitempty"`
	CrossReferences []string    `json:"cross_references,omitempty"`
	Possibilities   []string    `json:"possibilities,omitempty"`
	RelevanceScore  float64     `json:"relevance_score"`
	DurationMS      int         `json:"duration_ms"`
}

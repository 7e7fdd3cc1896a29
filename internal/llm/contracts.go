package llm

import "context"

// PageMetric is one metric the model found on a single report page.
// Label is the raw text as printed; resolution to the canonical
// vocabulary happens downstream.
type PageMetric struct {
	Label      string  `json:"label"`
	Value      float64 `json:"value"`
	Confidence float32 `json:"confidence,omitempty"` // 0..1
	Quote      string  `json:"quote,omitempty"`
}

// PageExtraction is the normalized shape we want from the LLM for one page.
type PageExtraction struct {
	Metrics []PageMetric `json:"metrics"`
}

type ParseRequest struct {
	PageText   string
	PageNumber int

	// KnownLabels biases the model toward the existing vocabulary
	// (canonical names plus synonyms).
	KnownLabels []string
}

// MetricParser is the interface the extraction pipeline depends on.
type MetricParser interface {
	ParsePage(ctx context.Context, req ParseRequest) (PageExtraction, []byte /*rawJSON*/, error)
}

// Embedder turns labels into vectors for similarity-based resolution.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// ScoredItem is one metric with its value as seen by the recommender.
type ScoredItem struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type RecommendRequest struct {
	ProfActivityName string
	ScorePct         float64
	Strengths        []ScoredItem
	DevAreas         []ScoredItem
}

// RecommendOutput is the normalized recommendation shape.
type RecommendOutput struct {
	Recommendations []string `json:"recommendations"`
}

// Recommender produces development advice from a scoring result.
type Recommender interface {
	Recommend(ctx context.Context, req RecommendRequest) (RecommendOutput, []byte, error)
}

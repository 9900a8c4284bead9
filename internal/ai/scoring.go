package ai

import (
	"context"
	"errors"
)

// Sentinel errors shared by the AI adapters. Callers are expected to match
// them with errors.Is since the adapters wrap them with call context.
var (
	// ErrEmptyInput is returned when a caller asks to embed blank text. A
	// zero vector would corrupt cosine similarity, so this is rejected
	// before any network call.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrEmbeddingUnavailable is returned when the embedding provider kept
	// failing after all retry attempts.
	ErrEmbeddingUnavailable = errors.New("embedding provider is unavailable")

	// ErrScoringUnavailable is returned when the generative provider kept
	// failing after all retry attempts.
	ErrScoringUnavailable = errors.New("scoring provider is unavailable")
)

// ScoringResult is the parsed judgment of how well a resume fits one job
// posting. Absent reply fields keep their zero values; a malformed reply is
// never an error.
type ScoringResult struct {
	// FitScore is clamped to [0, 100].
	FitScore        int      `json:"fit_score"`
	MatchedSkills   []string `json:"matched_skills"`
	MissingSkills   []string `json:"missing_skills"`
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`
	// Raw keeps the unparsed model reply for debugging and reports.
	Raw string `json:"-"`
}

// Embedder turns free text into a unit-length dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds several texts in one provider call, returning vectors
// aligned with the input order.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Scorer judges one (resume, posting) pair.
type Scorer interface {
	Score(ctx context.Context, resumeText, jobText string) (*ScoringResult, error)
}

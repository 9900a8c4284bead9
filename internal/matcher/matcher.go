// Package matcher drives the retrieval-and-rerank pipeline: embed the
// resume, retrieve nearest postings from the vector index, score the best of
// them with the generative model and merge everything into one ranked list.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/index"
	"github.com/spigell/resume-matcher/internal/jobs"
)

// Candidate is one retrieved posting with its vector similarity.
type Candidate struct {
	Posting *jobs.Posting `json:"posting"`
	// Similarity is the cosine similarity to the resume vector.
	Similarity float64 `json:"similarity"`
	// Rank is the 1-based retrieval position.
	Rank int `json:"rank"`
}

// Result is the final merged output for one posting. Scoring is nil for
// candidates that kept only their vector rank.
type Result struct {
	*Candidate
	Scoring *ai.ScoringResult `json:"scoring,omitempty"`
}

// Scored reports whether the generative model judged this candidate.
func (r *Result) Scored() bool { return r.Scoring != nil }

// Retrieve embeds the resume text and joins the index hits with the postings
// snapshot by position. An empty corpus yields an empty slice, not an error.
func Retrieve(ctx context.Context, embedder ai.Embedder, idx *index.Flat, postings *jobs.Postings, resumeText string, k int) ([]*Candidate, error) {
	if postings.Len() == 0 || k <= 0 {
		return []*Candidate{}, nil
	}

	resumeText = strings.Join(strings.Fields(resumeText), " ")

	vector, err := embedder.Embed(ctx, resumeText)
	if err != nil {
		return nil, fmt.Errorf("embed resume: %w", err)
	}

	hits, err := idx.Search(vector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	candidates := make([]*Candidate, 0, len(hits))
	for i, hit := range hits {
		if hit.Position >= postings.Len() {
			return nil, fmt.Errorf("index position %d outside postings snapshot of %d: index and metadata are misaligned",
				hit.Position, postings.Len())
		}
		candidates = append(candidates, &Candidate{
			Posting:    postings.Items[hit.Position],
			Similarity: hit.Score,
			Rank:       i + 1,
		})
	}

	return candidates, nil
}

// Matcher owns the read-only corpus state for one process run.
type Matcher struct {
	embedder ai.Embedder
	scorer   ai.Scorer
	index    *index.Flat
	postings *jobs.Postings
	logger   *zap.Logger
}

func New(embedder ai.Embedder, scorer ai.Scorer, idx *index.Flat, postings *jobs.Postings, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		embedder: embedder,
		scorer:   scorer,
		index:    idx,
		postings: postings,
		logger:   logger,
	}
}

// Run retrieves retrieveK candidates and scores the top scoreK of them,
// sequentially. A failed scoring call degrades that candidate to its vector
// rank; a failed resume embedding aborts the whole run with no partial
// results.
//
// Ordering policy: scored candidates first, by fit score descending; the
// model judgment overrides raw similarity once it exists. Ties fall back to
// similarity descending, then retrieval order. Unscored candidates follow,
// by similarity descending.
func (m *Matcher) Run(ctx context.Context, resumeText string, retrieveK, scoreK int) ([]*Result, error) {
	candidates, err := Retrieve(ctx, m.embedder, m.index, m.postings, resumeText, retrieveK)
	if err != nil {
		return nil, err
	}

	m.logger.Info("retrieved candidates", zap.Int("count", len(candidates)))

	if scoreK > len(candidates) {
		scoreK = len(candidates)
	}

	scored := make([]*Result, 0, scoreK)
	unscored := make([]*Result, 0, len(candidates))

	for i, candidate := range candidates {
		if i >= scoreK || m.scorer == nil {
			unscored = append(unscored, &Result{Candidate: candidate})
			continue
		}

		scoring, err := m.scorer.Score(ctx, resumeText, candidate.Posting.CleanText)
		if err != nil {
			m.logger.Warn("scoring failed, keeping vector-only rank",
				zap.String("posting_id", candidate.Posting.ID),
				zap.Error(err),
			)
			unscored = append(unscored, &Result{Candidate: candidate})
			continue
		}

		m.logger.Info("posting scored",
			zap.String("posting_id", candidate.Posting.ID),
			zap.String("title", candidate.Posting.Title),
			zap.Int("fit_score", scoring.FitScore),
			zap.Float64("similarity", candidate.Similarity),
		)

		scored = append(scored, &Result{Candidate: candidate, Scoring: scoring})
	}

	// Sort after the full join so the final order never depends on call
	// completion order.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Scoring.FitScore != scored[j].Scoring.FitScore {
			return scored[i].Scoring.FitScore > scored[j].Scoring.FitScore
		}
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Rank < scored[j].Rank
	})

	sort.SliceStable(unscored, func(i, j int) bool {
		if unscored[i].Similarity != unscored[j].Similarity {
			return unscored[i].Similarity > unscored[j].Similarity
		}
		return unscored[i].Rank < unscored[j].Rank
	})

	return append(scored, unscored...), nil
}

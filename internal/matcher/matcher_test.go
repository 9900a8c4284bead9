package matcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/index"
	"github.com/spigell/resume-matcher/internal/jobs"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeScorer struct {
	// scores maps job text to a fit score; missing entries fail the call.
	scores map[string]int
	calls  []string
}

func (f *fakeScorer) Score(_ context.Context, _, jobText string) (*ai.ScoringResult, error) {
	f.calls = append(f.calls, jobText)
	score, ok := f.scores[jobText]
	if !ok {
		return nil, fmt.Errorf("scorer: %w", ai.ErrScoringUnavailable)
	}
	return &ai.ScoringResult{FitScore: score, Summary: "ok"}, nil
}

func unit(values ...float32) []float32 {
	var norm float64
	for _, v := range values {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func testCorpus(t *testing.T) (*index.Flat, *jobs.Postings, [][]float32) {
	t.Helper()

	vectors := [][]float32{
		unit(1, 0, 0),    // A
		unit(1, 0.5, 0),  // B
		unit(0, 0, 1),    // C
	}

	idx, err := index.Build(vectors)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	postings := &jobs.Postings{Items: []*jobs.Posting{
		{ID: "A", Title: "Job A", CleanText: "text A"},
		{ID: "B", Title: "Job B", CleanText: "text B"},
		{ID: "C", Title: "Job C", CleanText: "text C"},
	}}

	return idx, postings, vectors
}

func TestRetrieveReturnsClosestFirst(t *testing.T) {
	idx, postings, vectors := testCorpus(t)

	query := unit(1, 0.4, 0) // closest to B, then A
	embedder := &fakeEmbedder{vector: query}

	candidates, err := Retrieve(context.Background(), embedder, idx, postings, "resume", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	if candidates[0].Posting.ID != "B" || candidates[1].Posting.ID != "A" {
		t.Fatalf("unexpected order: %s, %s", candidates[0].Posting.ID, candidates[1].Posting.ID)
	}

	wantB := dotProduct(query, vectors[1])
	if math.Abs(candidates[0].Similarity-wantB) > 1e-4 {
		t.Fatalf("similarity %.6f, want %.6f", candidates[0].Similarity, wantB)
	}

	if candidates[0].Rank != 1 || candidates[1].Rank != 2 {
		t.Fatalf("unexpected ranks: %d, %d", candidates[0].Rank, candidates[1].Rank)
	}
}

func TestRetrieveEmptyCorpusReturnsEmpty(t *testing.T) {
	idx, err := index.Build(nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	embedder := &fakeEmbedder{vector: unit(1, 0)}

	candidates, err := Retrieve(context.Background(), embedder, idx, &jobs.Postings{}, "resume", 5)
	if err != nil {
		t.Fatalf("expected no error for empty corpus, got %v", err)
	}

	if len(candidates) != 0 {
		t.Fatalf("expected empty result, got %d", len(candidates))
	}

	if embedder.calls != 0 {
		t.Fatal("expected no embedding call for empty corpus")
	}
}

func TestRunScoredCandidatesRankedByFitScore(t *testing.T) {
	idx, postings, _ := testCorpus(t)

	embedder := &fakeEmbedder{vector: unit(1, 0.4, 0)}
	scorer := &fakeScorer{scores: map[string]int{
		"text B": 55, // retrieved first, but lower fit
		"text A": 90,
	}}

	m := New(embedder, scorer, idx, postings, zap.NewNop())

	results, err := m.Run(context.Background(), "resume", 3, 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// A overtakes B: the model judgment overrides vector similarity.
	if results[0].Posting.ID != "A" || results[1].Posting.ID != "B" {
		t.Fatalf("unexpected scored order: %s, %s", results[0].Posting.ID, results[1].Posting.ID)
	}

	// C was never scored and trails the scored set.
	if results[2].Posting.ID != "C" || results[2].Scored() {
		t.Fatalf("expected unscored C last, got %s scored=%v", results[2].Posting.ID, results[2].Scored())
	}

	if len(scorer.calls) != 2 {
		t.Fatalf("expected 2 scoring calls, got %d", len(scorer.calls))
	}
}

func TestRunFitScoreTiesBrokenBySimilarity(t *testing.T) {
	idx, postings, _ := testCorpus(t)

	embedder := &fakeEmbedder{vector: unit(1, 0.4, 0)}
	scorer := &fakeScorer{scores: map[string]int{
		"text B": 80,
		"text A": 80,
	}}

	m := New(embedder, scorer, idx, postings, zap.NewNop())

	results, err := m.Run(context.Background(), "resume", 2, 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Equal fit scores: B has higher similarity and must rank first.
	if results[0].Posting.ID != "B" || results[1].Posting.ID != "A" {
		t.Fatalf("tie not broken by similarity: %s, %s", results[0].Posting.ID, results[1].Posting.ID)
	}
}

func TestRunScoringFailureDegradesToVectorRank(t *testing.T) {
	idx, postings, _ := testCorpus(t)

	embedder := &fakeEmbedder{vector: unit(1, 0.4, 0)}
	scorer := &fakeScorer{scores: map[string]int{
		"text A": 70, // B missing: its scoring call fails
	}}

	m := New(embedder, scorer, idx, postings, zap.NewNop())

	results, err := m.Run(context.Background(), "resume", 2, 2)
	if err != nil {
		t.Fatalf("run must survive per-candidate scoring failure: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Posting.ID != "A" || !results[0].Scored() {
		t.Fatalf("expected scored A first, got %s", results[0].Posting.ID)
	}

	if results[1].Posting.ID != "B" || results[1].Scored() {
		t.Fatalf("expected unscored B second, got %s scored=%v", results[1].Posting.ID, results[1].Scored())
	}
}

func TestRunEmbeddingFailureAbortsWithNoPartialResults(t *testing.T) {
	idx, postings, _ := testCorpus(t)

	embedder := &fakeEmbedder{err: fmt.Errorf("embed: %w", ai.ErrEmbeddingUnavailable)}
	scorer := &fakeScorer{scores: map[string]int{}}

	m := New(embedder, scorer, idx, postings, zap.NewNop())

	results, err := m.Run(context.Background(), "resume", 3, 2)
	if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}

	if results != nil {
		t.Fatalf("expected no partial results, got %d", len(results))
	}

	if len(scorer.calls) != 0 {
		t.Fatal("nothing must be scored when embedding fails")
	}
}

func TestRunWithoutScorerKeepsVectorOrder(t *testing.T) {
	idx, postings, _ := testCorpus(t)

	embedder := &fakeEmbedder{vector: unit(1, 0.4, 0)}

	m := New(embedder, nil, idx, postings, zap.NewNop())

	results, err := m.Run(context.Background(), "resume", 3, 3)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantOrder := []string{"B", "A", "C"}
	for i, want := range wantOrder {
		if results[i].Posting.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, results[i].Posting.ID)
		}
		if results[i].Scored() {
			t.Fatalf("no candidate should be scored without a scorer")
		}
	}
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

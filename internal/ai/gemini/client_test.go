package gemini

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/resume-matcher/internal/ai"
)

type fakeModels struct {
	mu sync.Mutex

	generateResponses []fakeGenerateResponse
	generateCalls     int

	embedResponses []fakeEmbedResponse
	embedCalls     int
	embedContents  [][]*genai.Content
}

type fakeGenerateResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeEmbedResponse struct {
	resp *genai.EmbedContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generateCalls >= len(f.generateResponses) {
		return nil, errors.New("unexpected generate call")
	}
	res := f.generateResponses[f.generateCalls]
	f.generateCalls++
	return res.resp, res.err
}

func (f *fakeModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedContents = append(f.embedContents, contents)
	if f.embedCalls >= len(f.embedResponses) {
		return nil, errors.New("unexpected embed call")
	}
	res := f.embedResponses[f.embedCalls]
	f.embedCalls++
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func embedResponse(vectors ...[]float32) *genai.EmbedContentResponse {
	resp := &genai.EmbedContentResponse{}
	for _, vec := range vectors {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: vec})
	}
	return resp
}

func newTestClient(models *fakeModels, maxRetries int) *Client {
	return &Client{
		models:         models,
		model:          "gemini-2.5-flash",
		embeddingModel: "gemini-embedding-001",
		maxRetries:     maxRetries,
		logger:         zap.NewNop(),
	}
}

func TestGenerateContentRetriesOnTemporaryError(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	models := &fakeModels{generateResponses: []fakeGenerateResponse{
		{err: tempErr},
		{resp: textResponse("retry ok")},
	}}

	client := newTestClient(models, 3)

	output, err := client.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if models.generateCalls != 2 {
		t.Fatalf("expected 2 calls, got %d", models.generateCalls)
	}
}

func TestGenerateContentStopsAfterRetriesExhausted(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models := &fakeModels{generateResponses: []fakeGenerateResponse{
		{err: tempErr}, {err: tempErr}, {err: tempErr},
	}}

	client := newTestClient(models, 3)

	if _, err := client.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	if models.generateCalls != 3 {
		t.Fatalf("expected 3 calls, got %d", models.generateCalls)
	}
}

func TestGenerateContentDoesNotRetryClientErrors(t *testing.T) {
	badRequest := genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}
	models := &fakeModels{generateResponses: []fakeGenerateResponse{{err: badRequest}}}

	client := newTestClient(models, 3)

	if _, err := client.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}

	if models.generateCalls != 1 {
		t.Fatalf("expected single call, got %d", models.generateCalls)
	}
}

func TestGenerateContentRejectsEmptyPrompt(t *testing.T) {
	models := &fakeModels{}
	client := newTestClient(models, 3)

	if _, err := client.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}

	if models.generateCalls != 0 {
		t.Fatalf("expected no provider calls, got %d", models.generateCalls)
	}
}

func TestEmbedReturnsUnitVector(t *testing.T) {
	models := &fakeModels{embedResponses: []fakeEmbedResponse{
		{resp: embedResponse([]float32{3, 4})},
	}}

	client := newTestClient(models, 3)

	vec, err := client.Embed(context.Background(), "resume text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	if math.Abs(math.Sqrt(norm)-1.0) > 1e-6 {
		t.Fatalf("expected unit norm, got %f", math.Sqrt(norm))
	}
}

func TestEmbedRejectsBlankText(t *testing.T) {
	models := &fakeModels{}
	client := newTestClient(models, 3)

	_, err := client.Embed(context.Background(), " \n\t ")
	if !errors.Is(err, ai.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}

	if models.embedCalls != 0 {
		t.Fatalf("expected no provider calls, got %d", models.embedCalls)
	}
}

func TestEmbedSurfacesUnavailableAfterRetries(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	tempErr := genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
	models := &fakeModels{embedResponses: []fakeEmbedResponse{
		{err: tempErr}, {err: tempErr}, {err: tempErr},
	}}

	client := newTestClient(models, 3)

	_, err := client.Embed(context.Background(), "resume text")
	if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}

	if models.embedCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", models.embedCalls)
	}
}

func TestEmbedBatchKeepsInputOrder(t *testing.T) {
	models := &fakeModels{embedResponses: []fakeEmbedResponse{
		{resp: embedResponse([]float32{1, 0}, []float32{0, 2})},
	}}

	client := newTestClient(models, 3)

	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed batch: %v", err)
	}

	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}

	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors not aligned with input order: %v", vectors)
	}

	if len(models.embedContents[0]) != 2 {
		t.Fatalf("expected one batched call with 2 contents, got %d", len(models.embedContents[0]))
	}
}

func TestEmbedBatchRejectsMisalignedResponse(t *testing.T) {
	models := &fakeModels{embedResponses: []fakeEmbedResponse{
		{resp: embedResponse([]float32{1, 0})},
	}}

	client := newTestClient(models, 3)

	if _, err := client.EmbedBatch(context.Background(), []string{"first", "second"}); err == nil {
		t.Fatal("expected error for misaligned response")
	}
}

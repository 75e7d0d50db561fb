package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"go.uber.org/zap"
)

type mockContentGenerator struct {
	req    *domain.GenerationRequest
	result *domain.GenerationResult
	err    error
	calls  int
}

func (m *mockContentGenerator) GenerateContent(_ context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	m.calls++
	m.req = req
	return m.result, m.err
}

func newTestGateway(backend *mockContentGenerator) *service.Gateway {
	return service.NewGateway(backend, "test", observability.NewMetrics(), zap.NewNop())
}

func TestGateway_Success(t *testing.T) {
	backend := &mockContentGenerator{result: &domain.GenerationResult{
		Payload:    `{"title":"Resignation Letter","htmlContent":"<div><h1>Resignation</h1><p>Dear [Manager Name],</p></div>","createdDate":"March 1, 2026"}`,
		TokensUsed: domain.TokenUsage{PromptTokens: 100, CompletionTokens: 300, TotalTokens: 400},
	}}

	doc, err := newTestGateway(backend).Generate(context.Background(), "u1", "  Resignation letter effective in 2 weeks ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if backend.req.Prompt != "Draft the following document: Resignation letter effective in 2 weeks" {
		t.Errorf("unexpected user content %q", backend.req.Prompt)
	}
	if !strings.Contains(backend.req.SystemInstruction, "legal and business document drafter") {
		t.Error("expected the drafting system instruction")
	}
	if doc.Title != "Resignation Letter" || doc.CreatedDate != "March 1, 2026" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.ID != "" {
		t.Error("a fresh document must not carry an id")
	}
}

func TestGateway_SanitizesMarkup(t *testing.T) {
	backend := &mockContentGenerator{result: &domain.GenerationResult{
		Payload: `{"title":"NDA","htmlContent":"<div onclick=\"steal()\"><p>Terms</p><script>alert(1)</script></div>","createdDate":"today"}`,
	}}

	doc, err := newTestGateway(backend).Generate(context.Background(), "u1", "NDA")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(doc.HTMLContent, "script") || strings.Contains(doc.HTMLContent, "onclick") {
		t.Errorf("expected sanitized markup, got %q", doc.HTMLContent)
	}
	if !strings.Contains(doc.HTMLContent, "<p>Terms</p>") {
		t.Errorf("expected content kept, got %q", doc.HTMLContent)
	}
}

func TestGateway_RejectsMalformedPayloads(t *testing.T) {
	payloads := map[string]string{
		"empty":         "",
		"not json":      "Here is your document!",
		"missing field": `{"title":"A","htmlContent":"<p>x</p>"}`,
		"extra field":   `{"title":"A","htmlContent":"<p>x</p>","createdDate":"d","author":"me"}`,
		"wrong type":    `{"title":"A","htmlContent":"<p>x</p>","createdDate":20260301}`,
		"blank title":   `{"title":"  ","htmlContent":"<p>x</p>","createdDate":"d"}`,
		"array":         `[{"title":"A","htmlContent":"<p>x</p>","createdDate":"d"}]`,
		"only markup":   `{"title":"A","htmlContent":"<script>x</script>","createdDate":"d"}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			backend := &mockContentGenerator{result: &domain.GenerationResult{Payload: payload}}

			_, err := newTestGateway(backend).Generate(context.Background(), "u1", "NDA")

			var genErr *domain.ErrGeneration
			if !errors.As(err, &genErr) {
				t.Fatalf("expected ErrGeneration, got %v", err)
			}
		})
	}
}

func TestGateway_BackendFailure(t *testing.T) {
	backend := &mockContentGenerator{err: &domain.ErrCircuitOpen{Service: "gemini"}}

	_, err := newTestGateway(backend).Generate(context.Background(), "u1", "NDA")

	var genErr *domain.ErrGeneration
	if !errors.As(err, &genErr) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Error("expected the cause to stay inspectable")
	}
	if backend.calls != 1 {
		t.Errorf("expected exactly 1 backend call, got %d", backend.calls)
	}
}

func TestGateway_EmptyPrompt(t *testing.T) {
	backend := &mockContentGenerator{}

	_, err := newTestGateway(backend).Generate(context.Background(), "u1", "  ")

	if err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if backend.calls != 0 {
		t.Error("backend must not be called for an empty prompt")
	}
}

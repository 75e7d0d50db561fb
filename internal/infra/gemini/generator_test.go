package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"

	"google.golang.org/genai"
)

type fakeModels struct {
	calls  int
	model  string
	config *genai.GenerateContentConfig
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     40,
			CandidatesTokenCount: 120,
			TotalTokenCount:      160,
		},
	}
}

func newTestGenerator(m *fakeModels) *Generator {
	return &Generator{models: m, model: DefaultModel, cb: resilience.NewCircuitBreaker("gemini-test")}
}

func TestGenerateContent_RequestShape(t *testing.T) {
	m := &fakeModels{resp: textResponse(`{"title":"NDA","htmlContent":"<div></div>","createdDate":"today"}`)}
	g := newTestGenerator(m)

	res, err := g.GenerateContent(context.Background(), &domain.GenerationRequest{
		UID:               "u1",
		SystemInstruction: "be a drafter",
		Prompt:            "Draft the following document: NDA",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if m.model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, m.model)
	}
	if m.prompt != "Draft the following document: NDA" {
		t.Errorf("unexpected prompt %q", m.prompt)
	}
	if m.config.ResponseMIMEType != "application/json" {
		t.Errorf("expected JSON mime type, got %q", m.config.ResponseMIMEType)
	}
	if got := m.config.ResponseSchema.Required; len(got) != 3 {
		t.Errorf("expected 3 required fields, got %v", got)
	}
	if m.config.SystemInstruction.Parts[0].Text != "be a drafter" {
		t.Errorf("system instruction not forwarded")
	}
	if res.TokensUsed.TotalTokens != 160 || res.TokensUsed.CompletionTokens != 120 {
		t.Errorf("unexpected token usage: %+v", res.TokensUsed)
	}
}

func TestGenerateContent_EmptyResponse(t *testing.T) {
	m := &fakeModels{resp: textResponse("  ")}

	_, err := newTestGenerator(m).GenerateContent(context.Background(), &domain.GenerationRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestGenerateContent_NoRetry(t *testing.T) {
	m := &fakeModels{err: errors.New("unavailable")}

	_, err := newTestGenerator(m).GenerateContent(context.Background(), &domain.GenerationRequest{Prompt: "x"})

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if m.calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", m.calls)
	}
}

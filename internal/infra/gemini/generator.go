// Package gemini implements the content generator on the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

var tracer = otel.Tracer("gemini")

// DefaultModel is used when GEMINI_MODEL is unset.
const DefaultModel = "gemini-3-flash-preview"

const serviceName = "gemini"

// modelsAPI is the subset of *genai.Models the generator calls.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator asks Gemini for a structured JSON document.
type Generator struct {
	models modelsAPI
	model  string
	cb     *gobreaker.CircuitBreaker
}

// NewGenerator creates a Gen AI client for the Gemini API.
func NewGenerator(ctx context.Context, apiKey, model string, cb *gobreaker.CircuitBreaker) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{models: client.Models, model: model, cb: cb}, nil
}

// documentSchema constrains the answer to {title, htmlContent, createdDate}.
func documentSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type:        genai.TypeString,
				Description: "A short professional title for the document.",
			},
			"htmlContent": {
				Type:        genai.TypeString,
				Description: "The document body as an HTML fragment wrapped in a single div.",
			},
			"createdDate": {
				Type:        genai.TypeString,
				Description: "Today's date in a human-readable format.",
			},
		},
		Required:         []string{"title", "htmlContent", "createdDate"},
		PropertyOrdering: []string{"title", "htmlContent", "createdDate"},
	}
}

func buildConfig(systemInstruction string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    documentSchema(),
	}
}

// GenerateContent sends the prompt once. Generation is not retried: a
// second call would cost another model invocation for the same charge.
func (g *Generator) GenerateContent(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	ctx, span := tracer.Start(ctx, "Generator.GenerateContent")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.uid", req.UID),
		attribute.String("llm.model", g.model),
	)

	var resp *genai.GenerateContentResponse
	err := resilience.Call(ctx, g.cb, serviceName, resilience.NoRetry, func() error {
		var err error
		resp, err = g.models.GenerateContent(ctx, g.model,
			[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
			buildConfig(req.SystemInstruction),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("gemini: empty response")
	}

	result := &domain.GenerationResult{Payload: text, Model: g.model}
	if resp.ModelVersion != "" {
		result.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		result.TokensUsed = domain.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	span.SetAttributes(attribute.Int("llm.tokens.total", result.TokensUsed.TotalTokens))
	return result, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/markup"
	"github.com/boddenberg/docflow-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// SystemInstruction frames every generation request.
const SystemInstruction = `You are an expert legal and business document drafter.
Your task is to draft professional, well-structured documents from the user's request.

Rules:
- Return the document body as an HTML fragment wrapped in a single <div>. Do not include <html>, <head> or <body> tags.
- Use semantic tags such as <h1>, <h2>, <p>, <ul>, <li> and <strong>.
- Use standard business-letter formatting where it applies: sender and recipient blocks, date, salutation, body, closing.
- Use bracketed placeholders like [Date], [Name], [Company Name] or [Address] for any detail the user did not supply.
- Keep a professional, precise tone.
- You may use Tailwind CSS utility classes for spacing and typography.

Respond with a JSON object with exactly three string fields: "title" (a short document title), "htmlContent" (the HTML fragment) and "createdDate" (today's date, human readable).`

// userContentPrefix precedes the user's prompt in the request.
const userContentPrefix = "Draft the following document: "

// Gateway wraps a generation backend and validates its answer.
type Gateway struct {
	backend     port.ContentGenerator
	backendName string
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewGateway creates a Gateway over backend. backendName labels metrics.
func NewGateway(backend port.ContentGenerator, backendName string, metrics *observability.Metrics, logger *zap.Logger) *Gateway {
	return &Gateway{backend: backend, backendName: backendName, metrics: metrics, logger: logger}
}

// Generate drafts a document from prompt. Every failure, including a
// malformed answer, is an *domain.ErrGeneration.
func (g *Gateway) Generate(ctx context.Context, uid, prompt string) (*domain.GeneratedDocument, error) {
	ctx, span := tracer.Start(ctx, "Gateway.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &domain.ErrGeneration{Reason: "empty prompt"}
	}

	start := time.Now()
	res, err := g.backend.GenerateContent(ctx, &domain.GenerationRequest{
		UID:               uid,
		SystemInstruction: SystemInstruction,
		Prompt:            userContentPrefix + prompt,
	})
	g.metrics.RecordRequestDuration("generate", time.Since(start))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			g.metrics.IncrExternalError(g.backendName)
			g.logger.Error("generation backend failed",
				zap.String("uid", uid),
				zap.String("backend", g.backendName),
				zap.Error(err),
			)
		}
		return nil, &domain.ErrGeneration{Reason: "backend call failed", Err: err}
	}

	g.metrics.RecordTokens(res.TokensUsed.PromptTokens, res.TokensUsed.CompletionTokens)
	span.SetAttributes(
		attribute.String("llm.model", res.Model),
		attribute.Int("llm.tokens.total", res.TokensUsed.TotalTokens),
	)

	doc, err := domain.DecodeGeneratedDocument(res.Payload)
	if err != nil {
		g.logger.Warn("generation payload rejected",
			zap.String("uid", uid),
			zap.String("model", res.Model),
			zap.Error(err),
		)
		return nil, &domain.ErrGeneration{Reason: "malformed response", Err: err}
	}

	doc.HTMLContent = markup.Sanitize(doc.HTMLContent)
	if strings.TrimSpace(markup.PlainText(doc.HTMLContent)) == "" {
		return nil, &domain.ErrGeneration{Reason: "response has no readable content"}
	}
	return doc, nil
}

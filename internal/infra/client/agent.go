// Package client holds HTTP clients for external services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

const agentService = "agent"

// AgentClient calls a generation agent service over HTTP. The agent owns the
// model choice and answers with the raw JSON document payload.
type AgentClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
}

// NewAgentClient creates a new AgentClient.
func NewAgentClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker) *AgentClient {
	return &AgentClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
	}
}

// agentResponse is the agent's envelope around the document payload.
type agentResponse struct {
	Document   json.RawMessage   `json:"document"`
	Model      string            `json:"model"`
	TokensUsed domain.TokenUsage `json:"tokens_used"`
}

// GenerateContent posts the request to {base}/v1/documents/generate once.
func (c *AgentClient) GenerateContent(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	ctx, span := tracer.Start(ctx, "AgentClient.GenerateContent")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", req.UID))

	var out agentResponse
	err := resilience.Call(ctx, c.cb, agentService, resilience.NoRetry, func() error {
		body, err := json.Marshal(req)
		if err != nil {
			return resilience.Permanent(err)
		}

		url := fmt.Sprintf("%s/v1/documents/generate", c.baseURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return resilience.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("agent API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resilience.Permanent(fmt.Errorf("decode agent response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(out.Document) == 0 {
		return nil, fmt.Errorf("agent returned no document")
	}

	// The document may arrive as a JSON object or as a JSON string holding it.
	payload := string(out.Document)
	var asString string
	if json.Unmarshal(out.Document, &asString) == nil {
		payload = asString
	}

	return &domain.GenerationResult{
		Payload:    payload,
		Model:      out.Model,
		TokensUsed: out.TokensUsed,
	}, nil
}

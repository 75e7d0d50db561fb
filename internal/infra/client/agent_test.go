package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"
)

func TestAgentClient_ObjectDocument(t *testing.T) {
	var received domain.GenerationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/documents/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"document":{"title":"NDA","htmlContent":"<div>x</div>","createdDate":"today"},"model":"agent-1","tokens_used":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`))
	}))
	defer srv.Close()

	c := NewAgentClient(srv.Client(), srv.URL+"/", resilience.NewCircuitBreaker("agent-test"))
	res, err := c.GenerateContent(context.Background(), &domain.GenerationRequest{UID: "u1", Prompt: "Draft the following document: NDA"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if received.UID != "u1" || received.Prompt != "Draft the following document: NDA" {
		t.Errorf("unexpected request body: %+v", received)
	}
	doc, err := domain.DecodeGeneratedDocument(res.Payload)
	if err != nil {
		t.Fatalf("payload should decode: %v", err)
	}
	if doc.Title != "NDA" {
		t.Errorf("expected title NDA, got %s", doc.Title)
	}
	if res.Model != "agent-1" || res.TokensUsed.TotalTokens != 3 {
		t.Errorf("unexpected metadata: %+v", res)
	}
}

func TestAgentClient_StringDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"document":"{\"title\":\"A\",\"htmlContent\":\"<div></div>\",\"createdDate\":\"d\"}"}`))
	}))
	defer srv.Close()

	c := NewAgentClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("agent-test"))
	res, err := c.GenerateContent(context.Background(), &domain.GenerationRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Payload != `{"title":"A","htmlContent":"<div></div>","createdDate":"d"}` {
		t.Errorf("unexpected payload %s", res.Payload)
	}
}

func TestAgentClient_ServerErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAgentClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("agent-test"))
	_, err := c.GenerateContent(context.Background(), &domain.GenerationRequest{Prompt: "x"})

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

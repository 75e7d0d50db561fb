package pdf

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDataURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a b", "data:text/html;charset=utf-8,a%20b"},
		{"<p>", "data:text/html;charset=utf-8,%3Cp%3E"},
		{"£", "data:text/html;charset=utf-8,%C2%A3"},
		{"x#y", "data:text/html;charset=utf-8,x%23y"},
	}
	for _, tt := range tests {
		if got := DataURL(tt.in); got != tt.want {
			t.Errorf("DataURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRender_ChromeMissing(t *testing.T) {
	r := &Renderer{timeout: time.Second, logger: zap.NewNop()}

	_, err := r.Render(context.Background(), "<p>x</p>")
	if !errors.Is(err, ErrChromeMissing) {
		t.Fatalf("expected ErrChromeMissing, got %v", err)
	}
}

func TestRender_PrintsPDF(t *testing.T) {
	path := LookupBrowser()
	if path == "" {
		t.Skip("no chrome binary on PATH")
	}
	r := NewRenderer(path, 30*time.Second, zap.NewNop())

	out, err := r.Render(context.Background(), "<html><body><h1>Invoice</h1><p>Fees: £500</p></body></html>")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output is not a PDF")
	}
}

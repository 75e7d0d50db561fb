package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"go.uber.org/zap"
)

type mockRenderer struct {
	html string
	out  []byte
	err  error
}

func (m *mockRenderer) Render(_ context.Context, html string) ([]byte, error) {
	m.html = html
	return m.out, m.err
}

type mockDispatcher struct {
	payload *domain.ExportPayload
	err     error
	calls   int
}

func (m *mockDispatcher) Dispatch(_ context.Context, p *domain.ExportPayload) error {
	m.calls++
	m.payload = p
	return m.err
}

func sampleDocument() *domain.GeneratedDocument {
	return &domain.GeneratedDocument{
		ID:          "doc-1",
		Title:       "Freelance Web Design Contract",
		HTMLContent: `<div><h1>Contract</h1><p>Fees: &pound;500 &amp; expenses</p><ul><li>Design</li><li>Build</li></ul></div>`,
		CreatedDate: "March 1, 2026",
	}
}

func newTestExportService(r *mockRenderer, d *mockDispatcher) *service.ExportService {
	return service.NewExportService(r, d, resilience.NewBulkhead(2), observability.NewMetrics(), zap.NewNop())
}

func TestExport_Success(t *testing.T) {
	r := &mockRenderer{out: []byte("%PDF-1.7")}
	d := &mockDispatcher{}
	sig := &domain.SignatureData{DataURL: "data:image/png;base64,iVBORw0KGgo="}

	receipt, err := newTestExportService(r, d).Export(context.Background(), "u1", sampleDocument(), sig, " client@example.com ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(r.html, `src="data:image/png;base64,iVBORw0KGgo="`) {
		t.Error("expected the signature image on the printed page")
	}
	if !strings.Contains(r.html, "Sincerely,") || !strings.Contains(r.html, "<h1>Contract</h1>") {
		t.Error("expected the document body and closing block")
	}

	p := d.payload
	if p.Email != "client@example.com" || p.Title != "Freelance Web Design Contract" {
		t.Errorf("unexpected payload header fields: %+v", p)
	}
	if p.PDFName != "document.pdf" || p.TextName != "document.txt" || string(p.PDF) != "%PDF-1.7" {
		t.Errorf("unexpected attachments: %s %s", p.PDFName, p.TextName)
	}
	wantText := "Title: Freelance Web Design Contract\nDate: March 1, 2026\n\nContract\n\nFees: £500 & expenses\n\nDesign\nBuild"
	if p.TextContent != wantText {
		t.Errorf("text rendition:\n got %q\nwant %q", p.TextContent, wantText)
	}
	if receipt.Filename != "freelance_web_design_contract.pdf" {
		t.Errorf("unexpected filename %q", receipt.Filename)
	}
	if receipt.ExportID != p.ExportID || receipt.PDFBytes != 8 {
		t.Errorf("unexpected receipt %+v", receipt)
	}
}

func TestExport_WithoutSignature(t *testing.T) {
	r := &mockRenderer{out: []byte("%PDF")}

	if _, err := newTestExportService(r, &mockDispatcher{}).Export(context.Background(), "u1", sampleDocument(), nil, "a@b.co"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(r.html, `alt="Signature"`) {
		t.Error("expected no signature image")
	}
	if !strings.Contains(r.html, "[Authorized Signature]") {
		t.Error("expected the signature line")
	}
}

func TestExport_InvalidRecipient(t *testing.T) {
	for _, email := range []string{"", "not-an-email", "Ana <ana@example.com>", "a@b, c@d"} {
		d := &mockDispatcher{}
		_, err := newTestExportService(&mockRenderer{}, d).Export(context.Background(), "u1", sampleDocument(), nil, email)

		var validation *domain.ErrValidation
		if !errors.As(err, &validation) {
			t.Errorf("%q: expected ErrValidation, got %v", email, err)
		}
		if d.calls != 0 {
			t.Errorf("%q: webhook must not be called", email)
		}
	}
}

func TestExport_RenderFailure(t *testing.T) {
	d := &mockDispatcher{}
	_, err := newTestExportService(&mockRenderer{err: errors.New("chrome crashed")}, d).
		Export(context.Background(), "u1", sampleDocument(), nil, "a@b.co")

	var exportErr *domain.ErrExport
	if !errors.As(err, &exportErr) || exportErr.Stage != "render" {
		t.Fatalf("expected render ErrExport, got %v", err)
	}
	if d.calls != 0 {
		t.Error("webhook must not be called when rendering fails")
	}
}

func TestExport_DispatchFailure(t *testing.T) {
	d := &mockDispatcher{err: errors.New("webhook returned status 500")}
	_, err := newTestExportService(&mockRenderer{out: []byte("%PDF")}, d).
		Export(context.Background(), "u1", sampleDocument(), nil, "a@b.co")

	var exportErr *domain.ErrExport
	if !errors.As(err, &exportErr) || exportErr.Stage != "dispatch" {
		t.Fatalf("expected dispatch ErrExport, got %v", err)
	}
	if d.calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", d.calls)
	}
}

func TestComposePage_EscapesTitleAndDropsForeignSignature(t *testing.T) {
	doc := sampleDocument()
	doc.Title = `<script>alert("x")</script>`

	page, err := service.ComposePage(doc, &domain.SignatureData{DataURL: "javascript:alert(1)"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Contains(page, "<script>") {
		t.Error("title must be escaped")
	}
	if strings.Contains(page, "javascript:") {
		t.Error("non-PNG signature URLs must be dropped")
	}
}

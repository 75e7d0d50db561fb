package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/docflow-bfa-go/internal/markup"
	"github.com/boddenberg/docflow-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	exportPDFName  = "document.pdf"
	exportTextName = "document.txt"
)

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: Georgia, "Times New Roman", serif; color: #1e293b; margin: 0; }
  .page { max-width: 7.5in; margin: 0 auto; }
  .header { text-align: center; margin-bottom: 3rem; }
  .header h1 { font-size: 1.875rem; font-weight: 700; text-transform: uppercase; letter-spacing: 0.025em; margin: 0; }
  .header p { color: #64748b; margin-top: 0.5rem; font-size: 0.875rem; font-style: italic; }
  .content p { text-align: justify; }
  .content h2 { font-size: 1.25rem; font-weight: 600; margin: 1.5rem 0 0.75rem; }
  .content ul { list-style: disc; margin-left: 1.25rem; }
  .content li { margin-bottom: 0.5rem; }
  .closing { margin-top: 5rem; display: flex; justify-content: flex-end; page-break-inside: avoid; }
  .closing .block { width: 16rem; border-top: 1px solid #94a3b8; padding-top: 1rem; position: relative; }
  .closing .block p { color: #475569; font-weight: 600; margin: 0 0 0.25rem; }
  .closing img { position: absolute; top: -4rem; left: 0; width: 12rem; height: 6rem; object-fit: contain; }
  .closing .label { margin-top: 2rem; font-size: 0.875rem; color: #94a3b8; }
</style>
</head>
<body>
<div class="page">
  <div class="header">
    <h1>{{.Title}}</h1>
    <p>{{.CreatedDate}}</p>
  </div>
  <div class="content">{{.Content}}</div>
  <div class="closing">
    <div class="block">
      <p>Sincerely,</p>
      {{if .Signature}}<img src="{{.Signature}}" alt="Signature">{{end}}
      <div class="label">[Authorized Signature]</div>
    </div>
  </div>
</div>
</body>
</html>
`))

type printPage struct {
	Title       string
	CreatedDate string
	Content     template.HTML
	Signature   template.URL
}

// ExportService renders the document in preview to PDF and text and hands
// both to the export webhook.
type ExportService struct {
	renderer   port.PDFRenderer
	dispatcher port.ExportDispatcher
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService creates an ExportService. bulkhead bounds concurrent renders.
func NewExportService(renderer port.PDFRenderer, dispatcher port.ExportDispatcher, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *ExportService {
	return &ExportService{
		renderer:   renderer,
		dispatcher: dispatcher,
		bulkhead:   bulkhead,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// ValidateRecipient checks that email is a single bare address.
func ValidateRecipient(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", &domain.ErrValidation{Field: "email", Message: "a valid email address is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", &domain.ErrValidation{Field: "email", Message: "a valid email address is required"}
	}
	return addr.Address, nil
}

// ComposePage builds the standalone printable HTML page.
func ComposePage(doc *domain.GeneratedDocument, sig *domain.SignatureData) (string, error) {
	page := printPage{
		Title:       doc.Title,
		CreatedDate: doc.CreatedDate,
		Content:     template.HTML(markup.Sanitize(doc.HTMLContent)),
	}
	if sig != nil && strings.HasPrefix(sig.DataURL, "data:image/png;base64,") {
		page.Signature = template.URL(sig.DataURL)
	}
	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, page); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TextRendition is the plain-text attachment body.
func TextRendition(doc *domain.GeneratedDocument) string {
	return fmt.Sprintf("Title: %s\nDate: %s\n\n%s", doc.Title, doc.CreatedDate, markup.PlainText(doc.HTMLContent))
}

// Export renders and dispatches doc. The PDF and the text rendition are
// produced in parallel; the webhook is called once.
func (s *ExportService) Export(ctx context.Context, uid string, doc *domain.GeneratedDocument, sig *domain.SignatureData, email string) (*domain.ExportReceipt, error) {
	ctx, span := tracer.Start(ctx, "ExportService.Export")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	recipient, err := ValidateRecipient(email)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("export", time.Since(start))
	}()

	page, err := ComposePage(doc, sig)
	if err != nil {
		return nil, s.fail(uid, "compose", err)
	}

	var (
		pdf  []byte
		text string
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.bulkhead.Acquire(gCtx); err != nil {
			return err
		}
		defer s.bulkhead.Release()

		out, err := s.renderer.Render(gCtx, page)
		if err != nil {
			return fmt.Errorf("render pdf: %w", err)
		}
		pdf = out
		return nil
	})
	g.Go(func() error {
		text = TextRendition(doc)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail(uid, "render", err)
	}

	exportID := uuid.NewString()
	span.SetAttributes(attribute.String("export.id", exportID))
	payload := &domain.ExportPayload{
		ExportID:    exportID,
		Email:       recipient,
		Title:       doc.Title,
		PDF:         pdf,
		PDFName:     exportPDFName,
		Text:        text,
		TextName:    exportTextName,
		TextContent: text,
	}
	if err := s.dispatcher.Dispatch(ctx, payload); err != nil {
		return nil, s.fail(uid, "dispatch", err)
	}

	s.metrics.IncrExport("sent")
	s.logger.Info("document exported",
		zap.String("uid", uid),
		zap.String("export_id", exportID),
		zap.Int("pdf_bytes", len(pdf)),
	)
	return &domain.ExportReceipt{
		ExportID: exportID,
		Email:    recipient,
		Filename: markup.Filename(doc.Title),
		PDFBytes: len(pdf),
		SentAt:   s.now().UTC(),
	}, nil
}

func (s *ExportService) fail(uid, stage string, err error) error {
	s.metrics.IncrExport("failed")
	s.logger.Error("export failed",
		zap.String("uid", uid),
		zap.String("stage", stage),
		zap.Error(err),
	)
	return &domain.ErrExport{Stage: stage, Err: err}
}

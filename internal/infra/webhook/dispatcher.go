// Package webhook delivers exported documents to the automation webhook as a
// multipart form.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("webhook")

const serviceName = "webhook"

// Dispatcher posts export payloads to a single webhook URL.
type Dispatcher struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{httpClient: httpClient, url: url, cb: cb, logger: logger}
}

// Dispatch sends the payload once. Any non-2xx answer is a failure; the
// webhook is not idempotent so nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, p *domain.ExportPayload) error {
	ctx, span := tracer.Start(ctx, "Dispatcher.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("export.id", p.ExportID),
		attribute.Int("export.pdf_bytes", len(p.PDF)),
	)

	if d.url == "" {
		return fmt.Errorf("webhook: EXPORT_WEBHOOK_URL is not configured")
	}

	body, contentType, err := encode(p)
	if err != nil {
		return fmt.Errorf("webhook: encode form: %w", err)
	}

	return resilience.Call(ctx, d.cb, serviceName, resilience.NoRetry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Export-ID", p.ExportID)

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			d.logger.Warn("webhook rejected export",
				zap.String("export_id", p.ExportID),
				zap.Int("status", resp.StatusCode),
			)
			return resilience.Permanent(fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	})
}

// encode builds the form: email, file, text_file, title, textContent.
func encode(p *domain.ExportPayload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("email", p.Email); err != nil {
		return nil, "", err
	}
	if err := writeFile(w, "file", p.PDFName, "application/pdf", p.PDF); err != nil {
		return nil, "", err
	}
	if err := writeFile(w, "text_file", p.TextName, "text/plain; charset=utf-8", []byte(p.Text)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("title", p.Title); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("textContent", p.TextContent); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, filename, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

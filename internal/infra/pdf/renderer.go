// Package pdf prints HTML pages to PDF with headless Chrome.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("pdf")

// ErrChromeMissing is returned when no Chrome or Chromium binary is available.
var ErrChromeMissing = errors.New("pdf: chrome or chromium not installed")

// A4 portrait in inches with 10 mm margins.
const (
	paperWidth  = 8.27
	paperHeight = 11.69
	margin      = 0.39
)

var browserCandidates = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// Renderer prints HTML through a fresh headless browser per call.
type Renderer struct {
	execPath string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRenderer resolves the browser binary: chromePath when set, otherwise
// the first candidate found on PATH. A missing browser is not fatal; Render
// then returns ErrChromeMissing.
func NewRenderer(chromePath string, timeout time.Duration, logger *zap.Logger) *Renderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	path := chromePath
	if path == "" {
		path = LookupBrowser()
	}
	if path == "" {
		logger.Warn("pdf: no chrome binary found, exports will fail")
	}
	return &Renderer{execPath: path, timeout: timeout, logger: logger}
}

// LookupBrowser returns the first browser binary on PATH, or "".
func LookupBrowser() string {
	for _, name := range browserCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// Available reports whether a browser binary was resolved.
func (r *Renderer) Available() bool { return r.execPath != "" }

// Render loads html as a data URL and prints it to A4 PDF.
func (r *Renderer) Render(ctx context.Context, html string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Renderer.Render")
	defer span.End()
	span.SetAttributes(attribute.Int("html.bytes", len(html)))

	if r.execPath == "" {
		return nil, ErrChromeMissing
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(r.execPath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	start := time.Now()
	var out []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(DataURL(html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			out, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}

	r.logger.Debug("pdf rendered",
		zap.Int("bytes", len(out)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// DataURL percent-encodes html into a data:text/html URL. Spaces become %20,
// not '+', and multi-byte runes are encoded byte by byte.
func DataURL(html string) string {
	var b strings.Builder
	b.Grow(len(html) + 32)
	b.WriteString("data:text/html;charset=utf-8,")
	for i := 0; i < len(html); i++ {
		c := html[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

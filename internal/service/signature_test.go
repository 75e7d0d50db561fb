package service_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/service"
)

func TestRasterizeSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	req := &domain.SignatureRequest{
		Width:            400,
		Height:           200,
		DevicePixelRatio: 2,
		Strokes: [][]domain.StrokePoint{
			{{X: 20, Y: 100}, {X: 80, Y: 60}, {X: 140, Y: 120}},
			{{X: 200, Y: 90}, {X: 260, Y: 90}},
		},
	}

	sig, err := service.RasterizeSignature(req, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(sig.DataURL, "data:image/png;base64,") {
		t.Errorf("expected PNG data URL, got %.40s", sig.DataURL)
	}
	if sig.Timestamp != "2026-03-01T12:30:00Z" {
		t.Errorf("unexpected timestamp %q", sig.Timestamp)
	}
}

func TestRasterizeSignature_Empty(t *testing.T) {
	req := &domain.SignatureRequest{Width: 400, Height: 200, Strokes: [][]domain.StrokePoint{{{X: 10, Y: 10}}}}

	_, err := service.RasterizeSignature(req, time.Now())

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRasterizeSignature_PointOutsidePad(t *testing.T) {
	req := &domain.SignatureRequest{
		Width:            300,
		Height:           150,
		DevicePixelRatio: 1,
		Strokes:          [][]domain.StrokePoint{{{X: 10, Y: 10}, {X: 5000000, Y: 5000000}}},
	}

	start := time.Now()
	_, err := service.RasterizeSignature(req, time.Now())

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if validation.Field != "strokes" {
		t.Errorf("expected strokes field, got %q", validation.Field)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected rejection without rasterizing, took %s", elapsed)
	}
}

func TestRasterizeSignature_BadSize(t *testing.T) {
	req := &domain.SignatureRequest{Width: 0, Height: 200}

	_, err := service.RasterizeSignature(req, time.Now())

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

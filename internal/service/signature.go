package service

import (
	"errors"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/boddenberg/docflow-bfa-go/internal/signature"
)

const maxSignaturePoints = 20000

// RasterizeSignature replays the captured strokes on a signature pad and
// returns the PNG data URL stamped with now.
func RasterizeSignature(req *domain.SignatureRequest, now time.Time) (*domain.SignatureData, error) {
	pad, err := signature.NewPad(req.Width, req.Height, req.DevicePixelRatio)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "size", Message: err.Error()}
	}

	total := 0
	strokes := make([][]signature.Point, 0, len(req.Strokes))
	for _, s := range req.Strokes {
		total += len(s)
		if total > maxSignaturePoints {
			return nil, &domain.ErrValidation{Field: "strokes", Message: "too many points"}
		}
		stroke := make([]signature.Point, len(s))
		for i, pt := range s {
			stroke[i] = signature.Point{X: pt.X, Y: pt.Y}
			if !pad.Contains(stroke[i]) {
				return nil, &domain.ErrValidation{Field: "strokes", Message: "point outside the signature pad"}
			}
		}
		strokes = append(strokes, stroke)
	}

	pad.Replay(strokes)

	dataURL, err := pad.DataURL()
	if errors.Is(err, signature.ErrEmpty) {
		return nil, &domain.ErrValidation{Field: "strokes", Message: "please sign before saving"}
	}
	if err != nil {
		return nil, err
	}
	return &domain.SignatureData{
		DataURL:   dataURL,
		Timestamp: now.UTC().Format(time.RFC3339),
	}, nil
}

// Package signature rasterizes hand-drawn strokes into a PNG image.
package signature

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/golang/freetype/raster"
	"golang.org/x/image/math/fixed"
)

// Stroke appearance in CSS pixels.
const (
	StrokeWidth = 2.5
	maxDevicePx = 4096
)

// Ink is the pen colour (#000080).
var Ink = color.RGBA{R: 0x00, G: 0x00, B: 0x80, A: 0xff}

// ErrEmpty is returned by Export when nothing has been drawn.
var ErrEmpty = errors.New("signature is empty")

// Point is a pointer position in CSS pixels relative to the pad's top-left corner.
type Point struct {
	X, Y float64
}

// Pad is a drawing surface backed by an RGBA image at device resolution.
// A Pad is not safe for concurrent use.
type Pad struct {
	width, height float64
	dpr           float64

	img     *image.RGBA
	r       *raster.Rasterizer
	painter *raster.RGBAPainter

	drawing    bool
	hasContent bool
	last       Point
}

// NewPad creates a pad of width×height CSS pixels scaled by the device pixel
// ratio. A non-positive dpr is treated as 1.
func NewPad(width, height, dpr float64) (*Pad, error) {
	if dpr <= 0 || math.IsNaN(dpr) {
		dpr = 1
	}
	if width <= 0 || height <= 0 || math.IsNaN(width) || math.IsNaN(height) {
		return nil, fmt.Errorf("invalid pad size %gx%g", width, height)
	}
	w, h := int(math.Round(width*dpr)), int(math.Round(height*dpr))
	if w < 1 || h < 1 || w > maxDevicePx || h > maxDevicePx {
		return nil, fmt.Errorf("pad size %dx%d device pixels out of range", w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	painter := raster.NewRGBAPainter(img)
	painter.SetColor(Ink)

	r := raster.NewRasterizer(w, h)
	r.UseNonZeroWinding = true

	return &Pad{
		width:   width,
		height:  height,
		dpr:     dpr,
		img:     img,
		r:       r,
		painter: painter,
	}, nil
}

// Bounds returns the device-pixel size of the surface.
func (p *Pad) Bounds() image.Rectangle {
	return p.img.Bounds()
}

// Contains reports whether pt is finite and lies within one pad size of the
// surface on every side. Points outside that margin are never rasterized.
func (p *Pad) Contains(pt Point) bool {
	if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
		return false
	}
	return pt.X >= -p.width && pt.X <= 2*p.width && pt.Y >= -p.height && pt.Y <= 2*p.height
}

// Begin starts a stroke at pt. A point the pad does not contain leaves the
// pad idle.
func (p *Pad) Begin(pt Point) {
	if !p.Contains(pt) {
		p.drawing = false
		return
	}
	p.drawing = true
	p.last = pt
}

// Extend draws a segment from the previous point to pt. It does nothing
// unless a stroke is in progress or when the pad does not contain pt.
func (p *Pad) Extend(pt Point) {
	if !p.drawing || !p.Contains(pt) {
		return
	}
	p.segment(p.last, pt)
	p.last = pt
	p.hasContent = true
}

// End finishes the current stroke.
func (p *Pad) End() {
	p.drawing = false
}

// Clear wipes the surface and resets the content flag.
func (p *Pad) Clear() {
	for i := range p.img.Pix {
		p.img.Pix[i] = 0
	}
	p.drawing = false
	p.hasContent = false
}

// HasContent reports whether at least one segment was drawn since the last Clear.
func (p *Pad) HasContent() bool {
	return p.hasContent
}

// Replay draws a sequence of strokes, each one Begin/Extend.../End.
func (p *Pad) Replay(strokes [][]Point) {
	for _, stroke := range strokes {
		if len(stroke) == 0 {
			continue
		}
		p.Begin(stroke[0])
		for _, pt := range stroke[1:] {
			p.Extend(pt)
		}
		p.End()
	}
}

// Export encodes the surface as PNG.
func (p *Pad) Export() ([]byte, error) {
	if !p.hasContent {
		return nil, ErrEmpty
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes the surface as a data:image/png;base64 URL.
func (p *Pad) DataURL() (string, error) {
	b, err := p.Export()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b), nil
}

// segment strokes a single line with round caps and joins.
func (p *Pad) segment(a, b Point) {
	from := p.toFixed(a)
	to := p.toFixed(b)
	if from == to {
		// A tap still leaves a dot.
		to.X += 1
	}

	var path raster.Path
	path.Start(from)
	path.Add1(to)

	p.r.Clear()
	p.r.AddStroke(path, fixed.Int26_6(StrokeWidth*p.dpr*64), raster.RoundCapper, raster.RoundJoiner)
	p.r.Rasterize(p.painter)
}

// toFixed converts to 26.6 device coordinates, clamped to the Contains margin
// so the conversion never overflows.
func (p *Pad) toFixed(pt Point) fixed.Point26_6 {
	x := clamp(pt.X, -p.width, 2*p.width)
	y := clamp(pt.Y, -p.height, 2*p.height)
	return fixed.Point26_6{
		X: fixed.Int26_6(math.Round(x * p.dpr * 64)),
		Y: fixed.Int26_6(math.Round(y * p.dpr * 64)),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

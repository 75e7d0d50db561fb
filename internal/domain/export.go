package domain

import "time"

// ExportRequest is the body of POST /v1/documents/export.
type ExportRequest struct {
	Email string `json:"email"`
}

// ExportPayload is the multipart submission sent to the export webhook.
type ExportPayload struct {
	ExportID    string
	Email       string
	Title       string
	PDF         []byte
	PDFName     string
	Text        string
	TextName    string
	TextContent string
}

// ExportReceipt is returned once the webhook accepted the document.
type ExportReceipt struct {
	ExportID string    `json:"exportId"`
	Email    string    `json:"email"`
	Filename string    `json:"filename"`
	PDFBytes int       `json:"pdfBytes"`
	SentAt   time.Time `json:"sentAt"`
}

// SignatureRequest is the body of POST /v1/documents/signature: the pointer
// strokes captured on the signature pad, in CSS pixels.
type SignatureRequest struct {
	Width            float64         `json:"width"`
	Height           float64         `json:"height"`
	DevicePixelRatio float64         `json:"devicePixelRatio"`
	Strokes          [][]StrokePoint `json:"strokes"`
}

// StrokePoint is one pointer sample relative to the pad's top-left corner.
type StrokePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

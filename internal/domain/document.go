package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GeneratedDocument is a drafted document. ID is empty until the store
// assigns one on save.
type GeneratedDocument struct {
	ID          string `json:"id,omitempty" firestore:"-"`
	Title       string `json:"title" firestore:"title"`
	HTMLContent string `json:"htmlContent" firestore:"htmlContent"`
	CreatedDate string `json:"createdDate" firestore:"createdDate"`
	// CreatedAtTimestamp is the store ordering key, a Firestore Timestamp.
	CreatedAtTimestamp time.Time `json:"createdAtTimestamp,omitzero" firestore:"createdAtTimestamp"`
}

// Clone returns a copy safe to hand out of a locked section.
func (d *GeneratedDocument) Clone() *GeneratedDocument {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// SignatureData is a rasterized hand-drawn signature held for the session.
type SignatureData struct {
	DataURL   string `json:"dataUrl"`
	Timestamp string `json:"timestamp"`
}

// documentFields are the exact keys a generation payload must carry.
var documentFields = []string{"title", "htmlContent", "createdDate"}

// DecodeGeneratedDocument parses a generation payload. The payload must be a
// JSON object with exactly the string fields title, htmlContent and
// createdDate; anything else is rejected.
func DecodeGeneratedDocument(payload string) (*GeneratedDocument, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("empty payload")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	values := make(map[string]string, len(documentFields))
	for _, field := range documentFields {
		msg, ok := raw[field]
		if !ok {
			return nil, fmt.Errorf("missing field %q", field)
		}
		msg = bytes.TrimSpace(msg)
		if len(msg) == 0 || msg[0] != '"' {
			return nil, fmt.Errorf("field %q must be a string", field)
		}
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		values[field] = s
	}
	if len(raw) != len(documentFields) {
		for key := range raw {
			if _, known := values[key]; !known {
				return nil, fmt.Errorf("unexpected field %q", key)
			}
		}
	}

	if strings.TrimSpace(values["title"]) == "" {
		return nil, errors.New("field \"title\" is blank")
	}
	if strings.TrimSpace(values["htmlContent"]) == "" {
		return nil, errors.New("field \"htmlContent\" is blank")
	}

	return &GeneratedDocument{
		Title:       values["title"],
		HTMLContent: values["htmlContent"],
		CreatedDate: values["createdDate"],
	}, nil
}

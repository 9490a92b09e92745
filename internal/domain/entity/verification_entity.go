package entity

import (
	"strings"
	"time"
)

// PreviewRef identifies a preview resource held for an artifact (an object
// URL, a bucket path, ...). The zero value means no preview.
type PreviewRef string

// Artifact is an uploaded identity-document image awaiting classification.
type Artifact struct {
	ID          string     `json:"id"`
	FileName    string     `json:"file_name"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type"`
	Preview     PreviewRef `json:"preview"`
	SelectedAt  time.Time  `json:"selected_at"`
}

// ExtractedDetails is what a successful verification reports about the document.
type ExtractedDetails struct {
	Name           string `json:"name"`
	Institution    string `json:"institution"`
	DocumentNumber string `json:"document_number"`
}

// IsImageType reports whether a declared media type is in the image category.
func IsImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

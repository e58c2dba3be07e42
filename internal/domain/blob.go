package domain

import (
	"mime"
	"strings"
	"time"
)

// BlobRecord is a stored binary attachment. Records are immutable once saved.
type BlobRecord struct {
	ID        int64
	Name      string
	MimeType  string
	Data      []byte
	CreatedAt time.Time
}

// Renderable reports whether the record can be shown directly (images and PDFs).
func (r BlobRecord) Renderable() bool {
	return IsRenderableMimeType(r.MimeType)
}

// IsRenderableMimeType reports whether a MIME type gets a view handle.
// Parameters such as "; charset=..." are ignored.
func IsRenderableMimeType(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf"
}

// RecordView is what the UI holds for a record: metadata plus an optional revocable handle.
type RecordView struct {
	ID       int64  `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
	Size     int    `json:"size" yaml:"size"`
	Handle   string `json:"handle,omitempty" yaml:"handle,omitempty"`
}

// LibraryView is the observable state of the blob library.
type LibraryView struct {
	Records []RecordView `json:"records" yaml:"records"`
	Saved   bool         `json:"saved" yaml:"saved"`
}

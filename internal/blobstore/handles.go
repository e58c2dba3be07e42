package blobstore

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/naka-gawa/portfolio-core/internal/domain"
)

const handleScheme = "blob:"

// Handles is a process-lifetime registry of revocable view handles ("blob:" URIs).
// Each handle pins a private copy of a record's bytes until it is revoked.
type Handles struct {
	namespace string

	mu      sync.RWMutex
	entries map[string]handleEntry
}

type handleEntry struct {
	mimeType string
	data     []byte
}

// NewHandles creates an empty registry. namespace is embedded in every minted URI.
func NewHandles(namespace string) *Handles {
	return &Handles{
		namespace: namespace,
		entries:   make(map[string]handleEntry),
	}
}

// Mint registers a handle for a renderable record (image or PDF). For any other
// MIME type no handle is produced and ok is false.
func (h *Handles) Mint(rec domain.BlobRecord) (uri string, ok bool) {
	if !rec.Renderable() {
		return "", false
	}

	uri = handleScheme + h.namespace + "/" + uuid.NewString()
	entry := handleEntry{
		mimeType: rec.MimeType,
		data:     append([]byte(nil), rec.Data...),
	}

	h.mu.Lock()
	h.entries[uri] = entry
	h.mu.Unlock()
	return uri, true
}

// Resolve returns the MIME type and a copy of the bytes behind a live handle.
func (h *Handles) Resolve(uri string) (mimeType string, data []byte, ok bool) {
	h.mu.RLock()
	entry, ok := h.entries[uri]
	h.mu.RUnlock()
	if !ok {
		return "", nil, false
	}
	return entry.mimeType, append([]byte(nil), entry.data...), true
}

// Revoke releases the given handles. Unknown or already revoked handles are ignored.
func (h *Handles) Revoke(uris ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, uri := range uris {
		delete(h.entries, uri)
	}
}

// RevokeAll releases every live handle.
func (h *Handles) RevokeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.entries)
}

// Len returns the number of live handles.
func (h *Handles) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// IsHandle reports whether s looks like a handle minted by a registry.
func IsHandle(s string) bool {
	return strings.HasPrefix(s, handleScheme)
}

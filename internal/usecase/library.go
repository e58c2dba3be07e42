package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/naka-gawa/portfolio-core/internal/blobstore"
	"github.com/naka-gawa/portfolio-core/internal/domain"
)

// Library is the use case behind the attachment list: it saves records and
// turns the stored records into views with revocable handles.
type Library struct {
	store   blobstore.RecordStore
	handles *blobstore.Handles
	logger  *slog.Logger

	mu    sync.Mutex
	seq   uint64 // bumped by every Refresh and Release; older listings are dropped
	view  domain.LibraryView
	batch []string
}

// NewLibrary creates a Library over store, minting handles from handles.
func NewLibrary(store blobstore.RecordStore, handles *blobstore.Handles, logger *slog.Logger) *Library {
	return &Library{
		store:   store,
		handles: handles,
		logger:  logger,
		view:    domain.LibraryView{Records: []domain.RecordView{}},
	}
}

// Save persists one record. The Saved flag is cleared when the save starts and set only
// once the write transaction has committed.
func (l *Library) Save(ctx context.Context, name, mimeType string, data []byte) (int64, error) {
	l.mu.Lock()
	l.view.Saved = false
	l.mu.Unlock()

	id, err := l.store.SaveRecord(ctx, name, mimeType, data)
	if err != nil {
		l.logger.Error("saving record failed", "name", name, "error", err)
		return 0, err
	}

	l.mu.Lock()
	l.view.Saved = true
	l.mu.Unlock()
	l.logger.Info("record saved", "id", id, "name", name, "mime_type", mimeType, "size", len(data))
	return id, nil
}

// Refresh lists every stored record and mints a fresh batch of handles for the renderable ones.
// The previous batch is revoked once the new one has replaced it. If a newer Refresh or a
// Release happened meanwhile, this batch is revoked, the view is left alone and the returned
// views carry no handles.
func (l *Library) Refresh(ctx context.Context) ([]domain.RecordView, error) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	records, err := l.store.ListRecords(ctx)
	if err != nil {
		l.logger.Error("listing records failed", "error", err)
		return nil, err
	}

	views := make([]domain.RecordView, 0, len(records))
	var batch []string
	for _, rec := range records {
		v := domain.RecordView{
			ID:       rec.ID,
			Name:     rec.Name,
			MimeType: rec.MimeType,
			Size:     len(rec.Data),
		}
		if uri, ok := l.handles.Mint(rec); ok {
			v.Handle = uri
			batch = append(batch, uri)
		}
		views = append(views, v)
	}

	l.mu.Lock()
	if seq != l.seq {
		l.mu.Unlock()
		l.handles.Revoke(batch...)
		l.logger.Debug("discarding stale record listing", "seq", seq)
		for i := range views {
			views[i].Handle = ""
		}
		return views, nil
	}
	previous := l.batch
	l.batch = batch
	l.view.Records = views
	l.mu.Unlock()

	l.handles.Revoke(previous...)
	l.logger.Debug("records listed", "count", len(views), "handles", len(batch), "revoked", len(previous))
	return cloneViews(views), nil
}

// Snapshot returns a copy of the current view.
func (l *Library) Snapshot() domain.LibraryView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.LibraryView{
		Records: cloneViews(l.view.Records),
		Saved:   l.view.Saved,
	}
}

// Resolve returns the MIME type and bytes behind a handle of the current batch.
func (l *Library) Resolve(handle string) (mimeType string, data []byte, ok bool) {
	if handle == "" {
		return "", nil, false
	}
	return l.handles.Resolve(handle)
}

// Release revokes every handle of the current batch and empties the view.
func (l *Library) Release() {
	l.mu.Lock()
	l.seq++
	previous := l.batch
	l.batch = nil
	l.view.Records = []domain.RecordView{}
	l.mu.Unlock()

	l.handles.Revoke(previous...)
}

func cloneViews(v []domain.RecordView) []domain.RecordView {
	return append([]domain.RecordView{}, v...)
}

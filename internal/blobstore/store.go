package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/naka-gawa/portfolio-core/internal/domain"
)

// RecordStore is the persistence surface for binary records.
type RecordStore interface {
	SaveRecord(ctx context.Context, name, mimeType string, data []byte) (int64, error)
	ListRecords(ctx context.Context) ([]domain.BlobRecord, error)
}

// Compile-time interface satisfaction check.
var _ RecordStore = (*SQLiteStore)(nil)

// SQLiteStore implements RecordStore on a single records table.
// The store owns the bytes: callers always receive copies.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore creates a store from an already-opened and migrated database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// DB exposes the underlying connections.
func (s *SQLiteStore) DB() *DB {
	return s.db
}

// Close releases both connection pools.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRecord appends one record inside a single write transaction and returns its
// store-assigned id. It returns only after the commit, so the record is visible to any
// subsequent ListRecords. On failure nothing is written.
func (s *SQLiteStore) SaveRecord(ctx context.Context, name, mimeType string, data []byte) (int64, error) {
	if data == nil {
		data = []byte{}
	}

	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", ErrTransactionFailure, err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO records (name, mime_type, data, created_at) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query, name, mimeType, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("%w: insert record %q: %w", ErrTransactionFailure, name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: read record id: %w", ErrTransactionFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", ErrTransactionFailure, err)
	}
	return id, nil
}

// ListRecords reads every record in one read transaction, in insertion order.
func (s *SQLiteStore) ListRecords(ctx context.Context) ([]domain.BlobRecord, error) {
	tx, err := s.db.Reader.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrTransactionFailure, err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `SELECT id, name, mime_type, data, created_at FROM records ORDER BY id`
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", ErrTransactionFailure, err)
	}
	defer rows.Close()

	records := []domain.BlobRecord{}
	for rows.Next() {
		var rec domain.BlobRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.MimeType, &rec.Data, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", ErrTransactionFailure, err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("%w: parse created_at for record %d: %w", ErrTransactionFailure, rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %w", ErrTransactionFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", ErrTransactionFailure, err)
	}
	return records, nil
}

package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchemaVersion1(t *testing.T) {
	store := setupTestStore(t)

	version, err := CurrentVersion(context.Background(), store.DB().Reader)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestOpen_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "portfolio.db")

	first, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = first.SaveRecord(ctx, "cv.pdf", "application/pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	records, err := second.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1, "reopening must not reset existing data")
}

func TestOpen_StoreUnavailable(t *testing.T) {
	// A regular file where the parent directory should be.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	store, err := Open(context.Background(), filepath.Join(blocker, "portfolio.db"))

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Nil(t, store)
}

func TestSQLiteStore_ListEmpty(t *testing.T) {
	store := setupTestStore(t)

	records, err := store.ListRecords(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSQLiteStore_SaveAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	testCases := []struct {
		name     string
		mimeType string
		data     []byte
	}{
		{name: "avatar.png", mimeType: "image/png", data: []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff}},
		{name: "cv.pdf", mimeType: "application/pdf", data: []byte("%PDF-1.7\n...")},
		{name: "notes.txt", mimeType: "text/plain", data: []byte("hello")},
	}

	var ids []int64
	for _, tc := range testCases {
		id, err := store.SaveRecord(ctx, tc.name, tc.mimeType, tc.data)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(testCases))

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := records[i]
			assert.Equal(t, ids[i], rec.ID)
			assert.Equal(t, tc.name, rec.Name)
			assert.Equal(t, tc.mimeType, rec.MimeType)
			assert.Len(t, rec.Data, len(tc.data))
			assert.Equal(t, tc.data, rec.Data)
			assert.False(t, rec.CreatedAt.IsZero())
		})
	}
}

func TestSQLiteStore_IDsAreMonotonic(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.SaveRecord(ctx, "a.png", "image/png", []byte{1})
	require.NoError(t, err)
	second, err := store.SaveRecord(ctx, "b.png", "image/png", []byte{2})
	require.NoError(t, err)

	assert.Greater(t, second, first)
}

func TestSQLiteStore_EmptyPayload(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.SaveRecord(ctx, "empty.png", "image/png", nil)
	require.NoError(t, err)

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Data)
}

func TestSQLiteStore_SaveFailsOnCancelledContext(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.SaveRecord(ctx, "a.png", "image/png", []byte{1})
	assert.ErrorIs(t, err, ErrTransactionFailure)

	records, err := store.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records, "a failed transaction must leave no partial record")
}

func TestSQLiteStore_ReturnsCopies(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	data := []byte("original")
	_, err := store.SaveRecord(ctx, "a.pdf", "application/pdf", data)
	require.NoError(t, err)
	data[0] = 'X'

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), records[0].Data)
}

func TestSQLiteStore_ListCorruptTimestamp(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, err := store.DB().Writer.ExecContext(ctx,
		`INSERT INTO records (name, mime_type, data, created_at) VALUES (?, ?, ?, ?)`,
		"a.png", "image/png", []byte{1}, "yesterday")
	require.NoError(t, err)

	records, err := store.ListRecords(ctx)

	assert.ErrorIs(t, err, ErrTransactionFailure)
	assert.Nil(t, records)
}

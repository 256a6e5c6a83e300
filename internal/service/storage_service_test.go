package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
	"inventario-go/internal/repository"
	"inventario-go/pkg/filestore"
	"inventario-go/pkg/sheets"
)

type storageFixture struct {
	files   *filestore.MemoryStore
	records repository.FileRecordRepository
	service StorageService
}

func newStorageFixture(t *testing.T, retentionDays int) *storageFixture {
	t.Helper()
	files := filestore.NewMemoryStore()
	records := repository.NewFileRecordRepository(sheets.NewMemoryStore())
	return &storageFixture{
		files:   files,
		records: records,
		service: NewStorageService(files, records, nil, retentionDays),
	}
}

func TestStoreFileFixesExpiryAtCreation(t *testing.T) {
	f := newStorageFixture(t, 30)

	before := time.Now()
	record, err := f.service.StoreFile(context.Background(), "Agencia Norte", 3, 2025, "xlsx", []byte("contenido"))
	require.NoError(t, err)

	assert.Equal(t, model.FileActive, record.Status)
	assert.Equal(t, int64(len("contenido")), record.Size)
	assert.WithinDuration(t, before.Add(30*24*time.Hour), record.ExpiresAt, 5*time.Second)
	assert.True(t, f.files.Exists(record.ObjectKey))

	// The tracking row is durable and carries the same expiry.
	stored, err := f.records.FindByFileID(context.Background(), record.FileID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.WithinDuration(t, record.ExpiresAt, stored.ExpiresAt, time.Second)
}

func TestStoreFileValidation(t *testing.T) {
	f := newStorageFixture(t, 30)
	ctx := context.Background()

	_, err := f.service.StoreFile(ctx, "", 3, 2025, "csv", []byte("x"))
	assert.True(t, apperr.IsValidation(err))

	_, err = f.service.StoreFile(ctx, "Agencia Norte", 3, 2025, "csv", nil)
	assert.True(t, apperr.IsValidation(err))
}

func TestListFilesNewestFirst(t *testing.T) {
	f := newStorageFixture(t, 30)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"oldest", "middle", "newest"} {
		require.NoError(t, f.records.Append(ctx, &model.StoredFileRecord{
			FileID:     id,
			ObjectKey:  "Agencia Norte/" + id,
			Location:   "Agencia Norte",
			UploadedAt: base.Add(time.Duration(i) * time.Hour),
			ExpiresAt:  base.AddDate(0, 1, 0),
			Status:     model.FileActive,
		}))
	}

	records, err := f.service.ListFiles(ctx, "Agencia Norte")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "newest", records[0].FileID)
	assert.Equal(t, "oldest", records[2].FileID)
}

func TestDownloadFileIncrementsCounter(t *testing.T) {
	f := newStorageFixture(t, 30)
	ctx := context.Background()

	record, err := f.service.StoreFile(ctx, "Agencia Norte", 3, 2025, "csv", []byte("a,b,c"))
	require.NoError(t, err)

	content, downloaded, err := f.service.DownloadFile(ctx, record.FileID)
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b,c"), content)
	assert.Equal(t, 1, downloaded.DownloadCount)

	_, downloaded, err = f.service.DownloadFile(ctx, record.FileID)
	require.NoError(t, err)
	assert.Equal(t, 2, downloaded.DownloadCount)
}

func TestDownloadFileNotFound(t *testing.T) {
	f := newStorageFixture(t, 30)

	_, _, err := f.service.DownloadFile(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestSweepExpiredDeletesThenMarks(t *testing.T) {
	f := newStorageFixture(t, 30)
	ctx := context.Background()

	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)

	seed := func(id string, expiresAt time.Time, withObject bool) {
		key := "Agencia Norte/" + id
		if withObject {
			_, err := f.files.Upload(ctx, "Agencia Norte", id, []byte("datos"), "text/csv")
			require.NoError(t, err)
		}
		require.NoError(t, f.records.Append(ctx, &model.StoredFileRecord{
			FileID:     id,
			ObjectKey:  key,
			Location:   "Agencia Norte",
			UploadedAt: past.Add(-time.Hour),
			ExpiresAt:  expiresAt,
			Status:     model.FileActive,
		}))
	}
	seed("expired-ok", past, true)
	seed("expired-broken", past, false) // deletion will fail
	seed("still-active", future, true)

	result := f.service.SweepExpired(ctx)
	assert.Equal(t, 1, result.DeletedCount)
	require.Len(t, result.Errors, 1)

	byID := func(id string) *model.StoredFileRecord {
		rec, err := f.records.FindByFileID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		return rec
	}

	assert.Equal(t, model.FileExpired, byID("expired-ok").Status)
	assert.False(t, f.files.Exists("Agencia Norte/expired-ok"))

	// Failed deletion leaves the row Active for the next cycle.
	assert.Equal(t, model.FileActive, byID("expired-broken").Status)

	assert.Equal(t, model.FileActive, byID("still-active").Status)
	assert.True(t, f.files.Exists("Agencia Norte/still-active"))
}

func TestExpiredFileIsNotDownloadable(t *testing.T) {
	f := newStorageFixture(t, 30)
	ctx := context.Background()

	record, err := f.service.StoreFile(ctx, "Agencia Norte", 3, 2025, "csv", []byte("a"))
	require.NoError(t, err)

	stored, err := f.records.FindByFileID(ctx, record.FileID)
	require.NoError(t, err)
	stored.Status = model.FileExpired
	require.NoError(t, f.records.Update(ctx, stored))

	_, _, err = f.service.DownloadFile(ctx, record.FileID)
	assert.True(t, apperr.IsNotFound(err))
}

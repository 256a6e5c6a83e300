package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
	"inventario-go/internal/repository"
	"inventario-go/internal/service"
	"inventario-go/pkg/filestore"
	"inventario-go/pkg/sheets"
)

// failingStorage simulates an unavailable file store.
type failingStorage struct{}

func (failingStorage) StoreFile(context.Context, string, int, int, string, []byte) (*model.StoredFileRecord, error) {
	return nil, apperr.Unavailable(errors.New("object store down"))
}
func (failingStorage) ListFiles(context.Context, string) ([]*model.StoredFileRecord, error) {
	return nil, nil
}
func (failingStorage) DownloadFile(context.Context, string) ([]byte, *model.StoredFileRecord, error) {
	return nil, nil, apperr.NotFound("stored file", "none")
}
func (failingStorage) SweepExpired(context.Context) service.SweepResult {
	return service.SweepResult{}
}

type backupFixture struct {
	sessions service.SessionService
	exports  service.ExportService
	scans    repository.ScanRepository
}

func newBackupFixture(t *testing.T) *backupFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := sheets.NewMemoryStore()
	summaries := repository.NewSummaryRepository(store)
	scans := repository.NewScanRepository(store)
	sessions := service.NewSessionService(summaries, scans, nil,
		service.WithVerifyPolicy(1, time.Millisecond))
	return &backupFixture{
		sessions: sessions,
		exports:  service.NewExportService(scans, summaries),
		scans:    scans,
	}
}

// router builds the endpoint over the shared session state with the given
// storage, so tests can swap storage between calls.
func (f *backupFixture) router(storage service.StorageService) *gin.Engine {
	r := gin.New()
	r.POST("/sessions/finish-and-backup", NewSessionHandler(f.sessions, f.exports, storage).FinishAndBackup)
	return r
}

func (f *backupFixture) seedScan(t *testing.T) {
	t.Helper()
	_, err := f.sessions.SaveScan(context.Background(), service.ScanInput{
		Location:   "Agencia Norte",
		Month:      3,
		Year:       2025,
		Identifier: "ABC12345",
		User:       "jlopez",
		UserName:   "Juan López",
	})
	require.NoError(t, err)
}

func finishAndBackup(t *testing.T, router *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	body := []byte(`{"location":"Agencia Norte","month":3,"year":2025,"user":"jlopez","format":"csv"}`)
	req := httptest.NewRequest(http.MethodPost, "/sessions/finish-and-backup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newWorkingStorage() service.StorageService {
	return service.NewStorageService(
		filestore.NewMemoryStore(),
		repository.NewFileRecordRepository(sheets.NewMemoryStore()),
		nil, 30)
}

func TestFinishAndBackupClearsAfterDurableStore(t *testing.T) {
	f := newBackupFixture(t)
	f.seedScan(t)

	w := finishAndBackup(t, f.router(newWorkingStorage()))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cleared":true`)

	scans, err := f.scans.ListByLocation(context.Background(), "Agencia Norte")
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestFinishAndBackupNeverClearsOnStoreFailure(t *testing.T) {
	f := newBackupFixture(t)
	f.seedScan(t)

	w := finishAndBackup(t, f.router(failingStorage{}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// The scan sheet must stay populated when the backup was not durable.
	scans, err := f.scans.ListByLocation(context.Background(), "Agencia Norte")
	require.NoError(t, err)
	assert.Len(t, scans, 1)
}

func TestFinishAndBackupRetryResumesAfterStoreFailure(t *testing.T) {
	f := newBackupFixture(t)
	f.seedScan(t)

	// First attempt finishes the session but cannot store the backup.
	w := finishAndBackup(t, f.router(failingStorage{}))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	// The retry finds the session already completed and must resume the
	// close-out from the completed row, not bail with a conflict.
	records := repository.NewFileRecordRepository(sheets.NewMemoryStore())
	storage := service.NewStorageService(filestore.NewMemoryStore(), records, nil, 30)
	w = finishAndBackup(t, f.router(storage))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cleared":true`)

	stored, err := records.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	scans, err := f.scans.ListByLocation(context.Background(), "Agencia Norte")
	require.NoError(t, err)
	assert.Empty(t, scans)
}

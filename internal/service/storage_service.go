package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
	"inventario-go/internal/repository"
	"inventario-go/pkg/events"
	"inventario-go/pkg/filestore"
	"inventario-go/pkg/log"

	"github.com/google/uuid"
)

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	DeletedCount int
	Errors       []error
}

// StorageService owns StoredFileRecord lifecycles: it stores session
// backups under per-agency folders, tracks them in the tracking sheet and
// expires them past the retention window.
type StorageService interface {
	StoreFile(ctx context.Context, location string, month, year int, fileType string, content []byte) (*model.StoredFileRecord, error)
	ListFiles(ctx context.Context, location string) ([]*model.StoredFileRecord, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, *model.StoredFileRecord, error)
	SweepExpired(ctx context.Context) SweepResult
}

type storageService struct {
	files         filestore.FileStore
	records       repository.FileRecordRepository
	producer      *events.Producer
	retentionDays int
}

// NewStorageService builds the service; retentionDays defaults to 30.
func NewStorageService(files filestore.FileStore, records repository.FileRecordRepository, producer *events.Producer, retentionDays int) StorageService {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &storageService{
		files:         files,
		records:       records,
		producer:      producer,
		retentionDays: retentionDays,
	}
}

func contentTypeFor(fileType string) string {
	switch fileType {
	case "csv":
		return "text/csv"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

func (s *storageService) StoreFile(ctx context.Context, location string, month, year int, fileType string, content []byte) (*model.StoredFileRecord, error) {
	if location == "" {
		return nil, apperr.Validationf("location", "location is required")
	}
	if len(content) == 0 {
		return nil, apperr.Validationf("content", "content is empty")
	}

	folder, err := s.files.EnsureFolder(ctx, location)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fileID := uuid.NewString()
	filename := fmt.Sprintf("inventario_%02d_%d_%s.%s", month, year, now.Format("20060102_150405"), fileType)
	key, err := s.files.Upload(ctx, folder, fileID+"_"+filename, content, contentTypeFor(fileType))
	if err != nil {
		return nil, err
	}

	record := &model.StoredFileRecord{
		FileID:     fileID,
		ObjectKey:  key,
		Filename:   filename,
		Location:   location,
		Month:      month,
		Year:       year,
		Type:       fileType,
		Size:       int64(len(content)),
		UploadedAt: now,
		// Fixed at creation, never recomputed.
		ExpiresAt: now.Add(time.Duration(s.retentionDays) * 24 * time.Hour),
		Status:    model.FileActive,
	}
	if err := s.records.Append(ctx, record); err != nil {
		return nil, err
	}

	s.producer.Publish(ctx, events.TypeFileStored, map[string]interface{}{
		"fileId":   fileID,
		"location": location,
		"type":     fileType,
		"size":     record.Size,
	})

	return record, nil
}

func (s *storageService) ListFiles(ctx context.Context, location string) ([]*model.StoredFileRecord, error) {
	records, err := s.records.ListByLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
	return records, nil
}

func (s *storageService) DownloadFile(ctx context.Context, fileID string) ([]byte, *model.StoredFileRecord, error) {
	record, err := s.records.FindByFileID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, apperr.NotFound("stored file", fileID)
	}
	if record.Status == model.FileExpired {
		return nil, nil, apperr.NotFound("stored file", fileID+" (expired)")
	}

	content, err := s.files.Download(ctx, record.ObjectKey)
	if err != nil {
		return nil, nil, err
	}

	// Counter update is best-effort: a tracking failure never fails the
	// download itself.
	record.DownloadCount++
	if err := s.records.Update(ctx, record); err != nil {
		log.Errorf("failed to increment download count for %s: %v", fileID, err)
		record.DownloadCount--
	}

	return content, record, nil
}

// SweepExpired runs the daily retention pass. Order matters: the backing
// file is deleted first and only then is the row marked Expired, so a
// failed deletion leaves the row Active for the next cycle instead of
// orphaning a file reference. Tracking rows are never deleted.
func (s *storageService) SweepExpired(ctx context.Context) SweepResult {
	var result SweepResult

	records, err := s.records.All(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	now := time.Now()
	for _, record := range records {
		if record.Status != model.FileActive || !record.ExpiresAt.Before(now) {
			continue
		}
		if err := s.files.Delete(ctx, record.ObjectKey); err != nil {
			log.Errorf("retention sweep: failed to delete %s: %v", record.ObjectKey, err)
			result.Errors = append(result.Errors, fmt.Errorf("delete %s: %w", record.FileID, err))
			continue
		}
		record.Status = model.FileExpired
		if err := s.records.Update(ctx, record); err != nil {
			log.Errorf("retention sweep: failed to mark %s expired: %v", record.FileID, err)
			result.Errors = append(result.Errors, fmt.Errorf("mark %s: %w", record.FileID, err))
			continue
		}
		result.DeletedCount++

		s.producer.Publish(ctx, events.TypeFileExpired, map[string]interface{}{
			"fileId":   record.FileID,
			"location": record.Location,
		})
	}

	log.Infof("retention sweep finished: %d deleted, %d errors", result.DeletedCount, len(result.Errors))
	return result
}

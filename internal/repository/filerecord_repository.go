package repository

import (
	"context"

	"inventario-go/internal/model"
	"inventario-go/pkg/sheets"
)

// FileRecordRepository persists StoredFileRecord rows in the tracking sheet.
// Rows are appended and updated, never removed: expired entries stay for
// audit.
type FileRecordRepository interface {
	All(ctx context.Context) ([]*model.StoredFileRecord, error)
	ListByLocation(ctx context.Context, location string) ([]*model.StoredFileRecord, error)
	FindByFileID(ctx context.Context, fileID string) (*model.StoredFileRecord, error)
	Append(ctx context.Context, record *model.StoredFileRecord) error
	Update(ctx context.Context, record *model.StoredFileRecord) error
}

type fileRecordRepository struct {
	store sheets.RowStore
}

// NewFileRecordRepository builds a repository over the given store.
func NewFileRecordRepository(store sheets.RowStore) FileRecordRepository {
	return &fileRecordRepository{store: store}
}

func (r *fileRecordRepository) All(ctx context.Context) ([]*model.StoredFileRecord, error) {
	rows, err := r.store.ReadRows(ctx, model.FilesSheet)
	if err != nil {
		return nil, err
	}
	var out []*model.StoredFileRecord
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if rec := model.FileRecordFromRow(i, row); rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fileRecordRepository) ListByLocation(ctx context.Context, location string) ([]*model.StoredFileRecord, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.StoredFileRecord
	for _, rec := range all {
		if rec.Location == location {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fileRecordRepository) FindByFileID(ctx context.Context, fileID string) (*model.StoredFileRecord, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		if rec.FileID == fileID {
			return rec, nil
		}
	}
	return nil, nil
}

func (r *fileRecordRepository) Append(ctx context.Context, record *model.StoredFileRecord) error {
	rows, err := r.store.ReadRows(ctx, model.FilesSheet)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		if err := r.store.AppendRow(ctx, model.FilesSheet, model.FilesHeader()); err != nil {
			return err
		}
	}
	return r.store.AppendRow(ctx, model.FilesSheet, record.ToRow())
}

func (r *fileRecordRepository) Update(ctx context.Context, record *model.StoredFileRecord) error {
	return r.store.UpdateRow(ctx, model.FilesSheet, record.RowIndex, record.ToRow())
}

package repository

import (
	"context"

	"inventario-go/internal/model"
	"inventario-go/pkg/sheets"
)

// ScanRepository persists ScanRecord rows in per-location sheets.
type ScanRepository interface {
	ListByLocation(ctx context.Context, location string) ([]*model.ScanRecord, error)
	Append(ctx context.Context, location string, record *model.ScanRecord) error
	// BlankRow erases a single scan row in place (correction requests).
	BlankRow(ctx context.Context, location string, rowIndex int) error
	// Clear removes every data row of a location sheet. Callers must only
	// invoke it after a durable backup is confirmed.
	Clear(ctx context.Context, location string) error
}

type scanRepository struct {
	store sheets.RowStore
}

// NewScanRepository builds a repository over the given store.
func NewScanRepository(store sheets.RowStore) ScanRepository {
	return &scanRepository{store: store}
}

func (r *scanRepository) ListByLocation(ctx context.Context, location string) ([]*model.ScanRecord, error) {
	rows, err := r.store.ReadRows(ctx, location)
	if err != nil {
		return nil, err
	}
	var out []*model.ScanRecord
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if s := model.ScanFromRow(i, row); s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *scanRepository) Append(ctx context.Context, location string, record *model.ScanRecord) error {
	rows, err := r.store.ReadRows(ctx, location)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		// First scan of a brand-new location sheet: write the header first.
		if err := r.store.AppendRow(ctx, location, model.ScanHeader()); err != nil {
			return err
		}
	}
	return r.store.AppendRow(ctx, location, record.ToRow())
}

func (r *scanRepository) BlankRow(ctx context.Context, location string, rowIndex int) error {
	blank := make([]string, len(model.ScanHeader()))
	return r.store.UpdateRow(ctx, location, rowIndex, blank)
}

func (r *scanRepository) Clear(ctx context.Context, location string) error {
	return r.store.ClearSheet(ctx, location)
}

// Package repository maps typed records onto the tabular backing store.
// Every repository works on sheets.RowStore, so the rate-limited cached
// client and the in-memory test store are interchangeable.
package repository

import (
	"context"

	"inventario-go/internal/model"
	"inventario-go/pkg/sheets"
)

// SummaryRepository persists MonthlySummary rows.
//
// Append is the only way a row comes into existence; Update writes back an
// existing row by its RowIndex and can never insert. BlankRow erases a row
// in place (the store has no physical delete).
type SummaryRepository interface {
	All(ctx context.Context) ([]*model.MonthlySummary, error)
	FindByKey(ctx context.Context, location string, month, year int) (*model.MonthlySummary, error)
	FindAllByKey(ctx context.Context, location string, month, year int) ([]*model.MonthlySummary, error)
	Append(ctx context.Context, summary *model.MonthlySummary) error
	Update(ctx context.Context, summary *model.MonthlySummary) error
	BlankRow(ctx context.Context, rowIndex int) error
}

type summaryRepository struct {
	store sheets.RowStore
}

// NewSummaryRepository builds a repository over the given store.
func NewSummaryRepository(store sheets.RowStore) SummaryRepository {
	return &summaryRepository{store: store}
}

func (r *summaryRepository) All(ctx context.Context) ([]*model.MonthlySummary, error) {
	rows, err := r.store.ReadRows(ctx, model.SummarySheet)
	if err != nil {
		return nil, err
	}
	var out []*model.MonthlySummary
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if s := model.SummaryFromRow(i, row); s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// FindByKey returns the first row matching the key regardless of status, or
// nil when absent. Status-agnostic matching is what keeps creation
// idempotent across completed sessions.
func (r *summaryRepository) FindByKey(ctx context.Context, location string, month, year int) (*model.MonthlySummary, error) {
	all, err := r.FindAllByKey(ctx, location, month, year)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *summaryRepository) FindAllByKey(ctx context.Context, location string, month, year int) ([]*model.MonthlySummary, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.MonthlySummary
	for _, s := range all {
		if s.MatchesKey(location, month, year) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *summaryRepository) Append(ctx context.Context, summary *model.MonthlySummary) error {
	rows, err := r.store.ReadRows(ctx, model.SummarySheet)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		if err := r.store.AppendRow(ctx, model.SummarySheet, model.SummaryHeader()); err != nil {
			return err
		}
	}
	return r.store.AppendRow(ctx, model.SummarySheet, summary.ToRow())
}

func (r *summaryRepository) Update(ctx context.Context, summary *model.MonthlySummary) error {
	return r.store.UpdateRow(ctx, model.SummarySheet, summary.RowIndex, summary.ToRow())
}

func (r *summaryRepository) BlankRow(ctx context.Context, rowIndex int) error {
	blank := make([]string, len(model.SummaryHeader()))
	return r.store.UpdateRow(ctx, model.SummarySheet, rowIndex, blank)
}

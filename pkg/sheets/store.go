// Package sheets provides access to the tabular backing store. The store is
// consumed through a narrow row-oriented interface; the production
// implementation talks to Google Sheets, and Client layers rate limiting,
// caching and retries on top of any implementation.
//
// All values are display strings: the store has no native numeric or date
// types, so typed records serialize every field at the model boundary.
package sheets

import "context"

// RowStore is the narrow contract over the backing tabular store.
//
// ReadRows returns every row of a sheet, header included. Row indexes used
// by UpdateRow refer to positions in that slice (0 = header). ClearSheet
// removes all data rows but preserves the header row.
type RowStore interface {
	ReadRows(ctx context.Context, sheet string) ([][]string, error)
	AppendRow(ctx context.Context, sheet string, row []string) error
	UpdateRow(ctx context.Context, sheet string, rowIndex int, row []string) error
	ClearSheet(ctx context.Context, sheet string) error
}

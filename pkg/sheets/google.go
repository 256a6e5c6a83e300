package sheets

import (
	"context"
	"errors"
	"fmt"

	"inventario-go/internal/apperr"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// GoogleStore implements RowStore over the Google Sheets API.
type GoogleStore struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

// NewGoogleStore builds a store for one spreadsheet using a service-account
// credentials file.
func NewGoogleStore(ctx context.Context, spreadsheetID, credentialsFile string) (*GoogleStore, error) {
	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &GoogleStore{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (g *GoogleStore) ReadRows(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, sheet).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *GoogleStore) AppendRow(ctx context.Context, sheet string, row []string) error {
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{toInterfaces(row)}}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, sheet, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return classify(err)
}

func (g *GoogleStore) UpdateRow(ctx context.Context, sheet string, rowIndex int, row []string) error {
	// rowIndex is 0-based over ReadRows output; A1 notation is 1-based.
	rng := fmt.Sprintf("%s!A%d", sheet, rowIndex+1)
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{toInterfaces(row)}}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return classify(err)
}

func (g *GoogleStore) ClearSheet(ctx context.Context, sheet string) error {
	// Header row stays in place.
	rng := fmt.Sprintf("%s!A2:ZZ", sheet)
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, rng, &sheetsapi.ClearValuesRequest{}).
		Context(ctx).Do()
	return classify(err)
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// classify tags quota, server-side and timeout failures as retriable so the
// client layer can back off; everything else propagates untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Retriable(err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 429, 500, 502, 503:
			return apperr.Retriable(err)
		}
	}
	return err
}

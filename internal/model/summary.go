package model

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a monthly inventory session.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "No Iniciado"
	StatusActive     SessionStatus = "Activo"
	StatusCompleted  SessionStatus = "Completado"
)

// MonthlySummary is one row of the summary sheet: one session of one
// location for one month. Rows are never deleted; they are the audit trail.
type MonthlySummary struct {
	Location    string
	Month       int
	Year        int
	Status      SessionStatus
	CreatedAt   time.Time
	CreatedBy   string
	UserName    string
	TotalScans  int
	SessionID   string
	CompletedAt time.Time
	CompletedBy string

	// RowIndex is the position within ReadRows output (0 = header). Set on
	// read, used for updates, never stored.
	RowIndex int
}

// SummaryHeader is the documented column order of the summary sheet.
func SummaryHeader() []string {
	return []string{
		"Agencia", "Mes", "Año", "Estado", "Creado", "CreadoPor",
		"Nombre", "TotalEscaneos", "SesionID", "Completado", "CompletadoPor",
	}
}

// ToRow serializes every field to the store's string representation.
func (s *MonthlySummary) ToRow() []string {
	return []string{
		s.Location,
		fmt.Sprintf("%02d", s.Month),
		formatInt(s.Year),
		string(s.Status),
		formatTime(s.CreatedAt),
		s.CreatedBy,
		s.UserName,
		formatInt(s.TotalScans),
		s.SessionID,
		formatTime(s.CompletedAt),
		s.CompletedBy,
	}
}

// SummaryFromRow parses a sheet row; returns nil for blanked rows.
func SummaryFromRow(rowIndex int, row []string) *MonthlySummary {
	if isBlankRow(row) {
		return nil
	}
	return &MonthlySummary{
		Location:    cell(row, 0),
		Month:       parseInt(cell(row, 1)),
		Year:        parseInt(cell(row, 2)),
		Status:      SessionStatus(cell(row, 3)),
		CreatedAt:   parseTime(cell(row, 4)),
		CreatedBy:   cell(row, 5),
		UserName:    cell(row, 6),
		TotalScans:  parseInt(cell(row, 7)),
		SessionID:   cell(row, 8),
		CompletedAt: parseTime(cell(row, 9)),
		CompletedBy: cell(row, 10),
		RowIndex:    rowIndex,
	}
}

// MatchesKey reports whether the row belongs to (location, month, year).
// Location comparison is exact; the key is how all session operations
// address a row.
func (s *MonthlySummary) MatchesKey(location string, month, year int) bool {
	return s.Location == location && s.Month == month && s.Year == year
}

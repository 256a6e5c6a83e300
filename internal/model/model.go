// Package model defines the typed records backing each sheet, with an
// explicit serialize/deserialize boundary: the store only holds display
// strings, so every field converts here and comparisons never fail on type
// mismatches.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Sheet names for the two fixed logical tables. Scan rows live in a sheet
// named after the location itself.
const (
	SummarySheet = "ResumenMensual"
	FilesSheet   = "Archivos"
)

// Timestamp layout used for every stored date value.
const TimeLayout = "02/01/2006 15:04:05"

// DateLayout is the display-only date used on scan rows.
const DateLayout = "02/01/2006"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// isBlankRow reports whether every cell is empty; blanked rows are how
// duplicate cleanup "removes" rows on a store with no delete operation.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

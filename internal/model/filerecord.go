package model

import (
	"fmt"
	"strconv"
	"time"
)

// FileStatus is the retention state of a stored backup.
type FileStatus string

const (
	FileActive  FileStatus = "Activo"
	FileExpired FileStatus = "Expirado"
)

// StoredFileRecord tracks one exported backup in the tracking sheet.
// ExpiresAt is fixed at creation and never recomputed; the status flips to
// Expired only via the retention sweep and is never reversed. The row
// itself is retained after expiry for audit.
type StoredFileRecord struct {
	FileID        string
	ObjectKey     string
	Filename      string
	Location      string
	Month         int
	Year          int
	Type          string
	Size          int64
	UploadedAt    time.Time
	ExpiresAt     time.Time
	DownloadCount int
	Status        FileStatus

	RowIndex int
}

// FilesHeader is the documented column order of the tracking sheet.
func FilesHeader() []string {
	return []string{
		"ArchivoID", "Objeto", "Nombre", "Agencia", "Mes", "Año", "Tipo",
		"Tamaño", "Subido", "Expira", "Descargas", "Estado",
	}
}

func (f *StoredFileRecord) ToRow() []string {
	return []string{
		f.FileID,
		f.ObjectKey,
		f.Filename,
		f.Location,
		fmt.Sprintf("%02d", f.Month),
		formatInt(f.Year),
		f.Type,
		strconv.FormatInt(f.Size, 10),
		formatTime(f.UploadedAt),
		formatTime(f.ExpiresAt),
		formatInt(f.DownloadCount),
		string(f.Status),
	}
}

// FileRecordFromRow parses a tracking row; returns nil for blanked rows.
func FileRecordFromRow(rowIndex int, row []string) *StoredFileRecord {
	if isBlankRow(row) {
		return nil
	}
	size, _ := strconv.ParseInt(cell(row, 7), 10, 64)
	return &StoredFileRecord{
		FileID:        cell(row, 0),
		ObjectKey:     cell(row, 1),
		Filename:      cell(row, 2),
		Location:      cell(row, 3),
		Month:         parseInt(cell(row, 4)),
		Year:          parseInt(cell(row, 5)),
		Type:          cell(row, 6),
		Size:          size,
		UploadedAt:    parseTime(cell(row, 8)),
		ExpiresAt:     parseTime(cell(row, 9)),
		DownloadCount: parseInt(cell(row, 10)),
		Status:        FileStatus(cell(row, 11)),
		RowIndex:      rowIndex,
	}
}

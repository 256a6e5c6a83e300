package model

// ScanRecord is one scanned item in a location's sheet. The serie, marca,
// color and ubicacion columns are only populated for QR-origin scans.
type ScanRecord struct {
	Date       string
	Identifier string
	ScannedBy  string
	Serie      string
	Marca      string
	Color      string
	Ubicacion  string

	RowIndex int
}

// ScanHeader is the documented column order of each location sheet.
func ScanHeader() []string {
	return []string{"Fecha", "Identificador", "EscaneadoPor", "Serie", "Marca", "Color", "Ubicacion"}
}

func (s *ScanRecord) ToRow() []string {
	return []string{s.Date, s.Identifier, s.ScannedBy, s.Serie, s.Marca, s.Color, s.Ubicacion}
}

// ScanFromRow parses a sheet row; returns nil for blanked rows.
func ScanFromRow(rowIndex int, row []string) *ScanRecord {
	if isBlankRow(row) {
		return nil
	}
	return &ScanRecord{
		Date:       cell(row, 0),
		Identifier: cell(row, 1),
		ScannedBy:  cell(row, 2),
		Serie:      cell(row, 3),
		Marca:      cell(row, 4),
		Color:      cell(row, 5),
		Ubicacion:  cell(row, 6),
		RowIndex:   rowIndex,
	}
}

// CarDataRow is the transient entity parsed from a label CSV upload. It is
// never persisted; it only feeds the label generation pipeline.
type CarDataRow struct {
	Serie     string
	Marca     string
	Color     string
	Ubicacion string
}

package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
	"inventario-go/internal/repository"
	"inventario-go/pkg/log"

	"github.com/xuri/excelize/v2"
)

// ExportService renders a location's scan data into downloadable formats.
// The xlsx rendition carries the scan rows plus a summary sheet; csv carries
// the scan rows only.
type ExportService interface {
	ExportCSV(ctx context.Context, location string, month, year int) ([]byte, error)
	ExportXLSX(ctx context.Context, location string, month, year int) ([]byte, error)
}

type exportService struct {
	scans     repository.ScanRepository
	summaries repository.SummaryRepository
}

// NewExportService builds the service.
func NewExportService(scans repository.ScanRepository, summaries repository.SummaryRepository) ExportService {
	return &exportService{scans: scans, summaries: summaries}
}

func (s *exportService) ExportCSV(ctx context.Context, location string, month, year int) ([]byte, error) {
	records, err := s.scans.ListByLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.NotFound("scan data", location)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(model.ScanHeader()); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rec.ToRow()); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	log.Infof("exported %d scan rows for %s as csv", len(records), location)
	return buf.Bytes(), nil
}

func (s *exportService) ExportXLSX(ctx context.Context, location string, month, year int) ([]byte, error) {
	records, err := s.scans.ListByLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.NotFound("scan data", location)
	}
	summary, err := s.summaries.FindByKey(ctx, location, month, year)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Inventario %s %02d/%d", location, month, year),
		Subject: "Respaldo de inventario mensual",
		Creator: "inventario-go",
		Created: time.Now().String(),
	})

	if err := s.createScanSheet(f, records, location, month, year); err != nil {
		return nil, fmt.Errorf("failed to create scan sheet: %w", err)
	}
	if summary != nil {
		if err := s.createSummarySheet(f, summary); err != nil {
			return nil, fmt.Errorf("failed to create summary sheet: %w", err)
		}
	}

	f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx to buffer: %w", err)
	}

	log.Infof("exported %d scan rows for %s as xlsx", len(records), location)
	return buf.Bytes(), nil
}

func (s *exportService) createScanSheet(f *excelize.File, records []*model.ScanRecord, location string, month, year int) error {
	const sheetName = "Inventario"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	headers := model.ScanHeader()
	titleRows := 2

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Inventario %s — %02d/%d", location, month, year))
	f.MergeCell(sheetName, "A1", colLetter(len(headers))+"1")

	for i, header := range headers {
		f.SetCellValue(sheetName, cellName(i+1, titleRows), header)
	}
	for rowIdx, rec := range records {
		row := rowIdx + titleRows + 1
		for colIdx, value := range rec.ToRow() {
			f.SetCellValue(sheetName, cellName(colIdx+1, row), value)
		}
	}

	for i := 1; i <= len(headers); i++ {
		width := 16.0
		if i == 1 || i == 2 {
			width = 22.0
		}
		f.SetColWidth(sheetName, colLetter(i), colLetter(i), width)
	}
	return nil
}

func (s *exportService) createSummarySheet(f *excelize.File, summary *model.MonthlySummary) error {
	const sheetName = "Resumen"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	for i, header := range model.SummaryHeader() {
		f.SetCellValue(sheetName, cellName(i+1, 1), header)
	}
	for i, value := range summary.ToRow() {
		f.SetCellValue(sheetName, cellName(i+1, 2), value)
	}

	for i := 1; i <= len(model.SummaryHeader()); i++ {
		f.SetColWidth(sheetName, colLetter(i), colLetter(i), 20)
	}
	return nil
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}

func colLetter(col int) string {
	letter, _ := excelize.ColumnNumberToName(col)
	return letter
}

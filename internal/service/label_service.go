package service

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
	"inventario-go/internal/qrlabel"
	"inventario-go/internal/validate"
	"inventario-go/pkg/events"
	"inventario-go/pkg/filestore"
	"inventario-go/pkg/log"

	"github.com/google/uuid"
)

// labelFolder is the file-store folder holding generated batch archives.
const labelFolder = "etiquetas"

// LabelImage is one rendered label within a batch.
type LabelImage struct {
	Name string
	Data []byte
}

// BatchResult is the outcome of generating one label batch.
type BatchResult struct {
	SessionID string
	Images    []LabelImage
	Manifest  string
}

// LabelService runs the QR generation pipeline: CSV upload → validated rows
// → encoded payloads → rendered images → zip archive, and decodes scanned
// payloads back into scan requests.
type LabelService interface {
	ParseTabularUpload(fileBytes []byte) ([]model.CarDataRow, error)
	GenerateBatch(rows []model.CarDataRow, location, user, userName string) (*BatchResult, error)
	PackageArchive(batch *BatchResult) ([]byte, error)
	// GenerateFromCSV runs the full pipeline and stores the archive for
	// later retrieval by sessionId.
	GenerateFromCSV(ctx context.Context, fileBytes []byte, location, user, userName string) (*BatchResult, error)
	DownloadArchive(ctx context.Context, sessionID string) ([]byte, error)
	// ScanPayload decodes a scanned code and records the scan with its
	// enriched car data.
	ScanPayload(ctx context.Context, payload string, month, year int, user, userName string) (*ScanResult, error)
	// PurgeDownloadedBatches deletes archives whose download grace window
	// has elapsed; runs on a schedule.
	PurgeDownloadedBatches(ctx context.Context) int
}

type batchState struct {
	objectKey    string
	generatedAt  time.Time
	downloadedAt time.Time
}

type labelService struct {
	files    filestore.FileStore
	sessions SessionService
	producer *events.Producer
	grace    time.Duration

	mu      sync.Mutex
	batches map[string]*batchState
}

// NewLabelService builds the pipeline. grace bounds how long a downloaded
// archive stays retrievable.
func NewLabelService(files filestore.FileStore, sessions SessionService, producer *events.Producer, grace time.Duration) LabelService {
	if grace == 0 {
		grace = time.Hour
	}
	return &labelService{
		files:    files,
		sessions: sessions,
		producer: producer,
		grace:    grace,
		batches:  make(map[string]*batchState),
	}
}

var requiredColumns = []string{"serie", "marca", "color", "ubicacion"}

func (s *labelService) ParseTabularUpload(fileBytes []byte) ([]model.CarDataRow, error) {
	if len(bytes.TrimSpace(fileBytes)) == 0 {
		return nil, apperr.Validationf("file", "uploaded file is empty")
	}

	reader := csv.NewReader(bytes.NewReader(fileBytes))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Validationf("file", "could not parse delimited text: %v", err)
	}
	if len(records) == 0 {
		return nil, apperr.Validationf("file", "uploaded file is empty")
	}

	// Case-insensitive header match.
	colIndex := make(map[string]int)
	for i, name := range records[0] {
		colIndex[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, apperr.Validationf("file", "required column %q is missing", col)
		}
	}

	var rows []model.CarDataRow
	var problems []string
	for i, record := range records[1:] {
		rowNumber := i + 2 // 1-based plus header
		row := model.CarDataRow{
			Serie:     strings.TrimSpace(field(record, colIndex["serie"])),
			Marca:     strings.TrimSpace(field(record, colIndex["marca"])),
			Color:     strings.TrimSpace(field(record, colIndex["color"])),
			Ubicacion: strings.TrimSpace(field(record, colIndex["ubicacion"])),
		}
		switch {
		case row.Serie == "" || row.Marca == "" || row.Color == "" || row.Ubicacion == "":
			problems = append(problems, fmt.Sprintf("row %d: all of serie, marca, color and ubicacion are required", rowNumber))
		case !validate.IsSerial(row.Serie):
			problems = append(problems, fmt.Sprintf("row %d: serie %q must be 17 alphanumeric characters", rowNumber, row.Serie))
		default:
			row.Serie = validate.NormalizeSerial(row.Serie)
			rows = append(rows, row)
		}
	}
	if len(problems) > 0 {
		return nil, apperr.Validationf("file", "%s", strings.Join(problems, "; "))
	}
	if len(rows) == 0 {
		return nil, apperr.Validationf("file", "uploaded file has no data rows")
	}
	return rows, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func (s *labelService) GenerateBatch(rows []model.CarDataRow, location, user, userName string) (*BatchResult, error) {
	sessionID := uuid.NewString()

	var manifest strings.Builder
	fmt.Fprintf(&manifest, "Lote de etiquetas %s\n", sessionID)
	fmt.Fprintf(&manifest, "Agencia: %s\n", location)
	fmt.Fprintf(&manifest, "Generado: %s por %s (%s)\n", time.Now().Format(model.TimeLayout), userName, user)
	fmt.Fprintf(&manifest, "Etiquetas: %d\n\n", len(rows))

	images := make([]LabelImage, 0, len(rows))
	for i, row := range rows {
		payload, err := qrlabel.Encode(row, location).Marshal()
		if err != nil {
			return nil, fmt.Errorf("failed to encode label for row %d: %w", i+1, err)
		}
		img, err := qrlabel.RenderImage(payload, row.Serie, row.Marca, row.Color, location)
		if err != nil {
			return nil, fmt.Errorf("failed to render label for row %d: %w", i+1, err)
		}
		name := fmt.Sprintf("%s_%03d.png", qrlabel.SanitizeFilename(row.Serie+"_"+row.Marca), i+1)
		images = append(images, LabelImage{Name: name, Data: img})
		fmt.Fprintf(&manifest, "%03d  %s  %s  %s  %s\n", i+1, row.Serie, row.Marca, row.Color, row.Ubicacion)
	}

	return &BatchResult{SessionID: sessionID, Images: images, Manifest: manifest.String()}, nil
}

// PackageArchive bundles the batch into one zip at maximum compression.
func (s *labelService) PackageArchive(batch *BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, img := range batch.Images {
		w, err := zw.Create(img.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", img.Name, err)
		}
		if _, err := w.Write(img.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", img.Name, err)
		}
	}

	w, err := zw.Create("manifiesto.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to add manifest to archive: %w", err)
	}
	if _, err := w.Write([]byte(batch.Manifest)); err != nil {
		return nil, fmt.Errorf("failed to write manifest to archive: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// ArchiveName keys the stored archive by sessionId for deterministic lookup.
func ArchiveName(sessionID string) string {
	return fmt.Sprintf("etiquetas_%s.zip", sessionID)
}

func (s *labelService) GenerateFromCSV(ctx context.Context, fileBytes []byte, location, user, userName string) (*BatchResult, error) {
	rows, err := s.ParseTabularUpload(fileBytes)
	if err != nil {
		return nil, err
	}
	batch, err := s.GenerateBatch(rows, location, user, userName)
	if err != nil {
		return nil, err
	}
	archive, err := s.PackageArchive(batch)
	if err != nil {
		return nil, err
	}

	folder, err := s.files.EnsureFolder(ctx, labelFolder)
	if err != nil {
		return nil, err
	}
	key, err := s.files.Upload(ctx, folder, ArchiveName(batch.SessionID), archive, "application/zip")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.batches[batch.SessionID] = &batchState{objectKey: key, generatedAt: time.Now()}
	s.mu.Unlock()

	s.producer.Publish(ctx, events.TypeBatchGenerated, map[string]interface{}{
		"sessionId": batch.SessionID,
		"location":  location,
		"labels":    len(batch.Images),
	})

	return batch, nil
}

func (s *labelService) DownloadArchive(ctx context.Context, sessionID string) ([]byte, error) {
	s.mu.Lock()
	state, ok := s.batches[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("label batch", sessionID)
	}

	data, err := s.files.Download(ctx, state.objectKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if state.downloadedAt.IsZero() {
		state.downloadedAt = time.Now()
	}
	s.mu.Unlock()
	return data, nil
}

func (s *labelService) ScanPayload(ctx context.Context, payload string, month, year int, user, userName string) (*ScanResult, error) {
	decoded, err := qrlabel.Decode(payload)
	if err != nil {
		return nil, err
	}
	return s.sessions.SaveScan(ctx, ScanInput{
		Location:   decoded.Agencia,
		Month:      month,
		Year:       year,
		Identifier: decoded.Serie,
		User:       user,
		UserName:   userName,
		Car: &CarData{
			Serie:     decoded.Serie,
			Marca:     decoded.Marca,
			Color:     decoded.Color,
			Ubicacion: decoded.Ubicacion,
		},
	})
}

func (s *labelService) PurgeDownloadedBatches(ctx context.Context) int {
	now := time.Now()
	var expired []string
	s.mu.Lock()
	for id, state := range s.batches {
		if !state.downloadedAt.IsZero() && now.Sub(state.downloadedAt) >= s.grace {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	purged := 0
	for _, id := range expired {
		s.mu.Lock()
		state := s.batches[id]
		s.mu.Unlock()
		if state == nil {
			// An overlapping purge run already removed this batch.
			continue
		}
		if err := s.files.Delete(ctx, state.objectKey); err != nil {
			log.Errorf("failed to purge label archive %s: %v", id, err)
			continue
		}
		s.mu.Lock()
		delete(s.batches, id)
		s.mu.Unlock()
		purged++
	}
	if purged > 0 {
		log.Infof("purged %d downloaded label archives", purged)
	}
	return purged
}

// Package service contains the business logic layer.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
	"inventario-go/internal/repository"
	"inventario-go/internal/validate"
	"inventario-go/pkg/events"
	"inventario-go/pkg/log"

	"github.com/google/uuid"
)

// MaxSessionsPerMonth is the per-agency ceiling counted over rows of any
// status.
const MaxSessionsPerMonth = 2

// CarData is the enriched vehicle information carried by QR-origin scans.
type CarData struct {
	Serie     string `json:"serie"`
	Marca     string `json:"marca"`
	Color     string `json:"color"`
	Ubicacion string `json:"ubicacion"`
}

// ScanInput is one scan request.
type ScanInput struct {
	Location   string   `json:"location"`
	Month      int      `json:"month"`
	Year       int      `json:"year"`
	Identifier string   `json:"identifier"`
	User       string   `json:"user"`
	UserName   string   `json:"userName"`
	Car        *CarData `json:"carData,omitempty"`
}

// ScanResult returns updated totals for immediate caller feedback.
type ScanResult struct {
	Summary *model.MonthlySummary
	Record  *model.ScanRecord
}

// LimitsResult reports whether a brand-new session may start.
type LimitsResult struct {
	CanStart          bool   `json:"canStart"`
	CurrentMonthCount int    `json:"currentMonthCount"`
	ActiveCount       int    `json:"activeCount"`
	Reason            string `json:"reason,omitempty"`
}

// SessionService owns the MonthlySummary and ScanRecord lifecycles. No other
// component mutates those sheets.
type SessionService interface {
	// FindOrCreateMonthlySummary is the ONLY operation allowed to insert
	// summary rows. Idempotent under concurrent calls for the same key.
	FindOrCreateMonthlySummary(ctx context.Context, location string, month, year int, user, userName string) (*model.MonthlySummary, error)
	// UpdateMonthlySummary increments the scan counter of an existing row.
	// It never creates a row and never alters status.
	UpdateMonthlySummary(ctx context.Context, location string, month, year, increment int) (*model.MonthlySummary, error)
	SaveScan(ctx context.Context, input ScanInput) (*ScanResult, error)
	CheckInventoryLimits(ctx context.Context, location string, month, year int) (*LimitsResult, error)
	FinishSession(ctx context.Context, location string, month, year int, user string) (*model.MonthlySummary, error)
	FetchMonthlyData(ctx context.Context, location string, month, year int) (*model.MonthlySummary, []*model.ScanRecord, error)
	DeleteScan(ctx context.Context, location string, month, year int, identifier string) error
	ClearAgencyDataAfterDownload(ctx context.Context, location string, month, year int, sessionID string) error
	CleanupDuplicateRows(ctx context.Context) (int, error)
	CleanupSpecificDuplicates(ctx context.Context, location string, month, year int) (int, error)
}

type sessionService struct {
	summaries repository.SummaryRepository
	scans     repository.ScanRepository
	producer  *events.Producer
	locks     keyedMutex

	// Bounded verification of read-after-write visibility.
	verifyAttempts int
	verifyDelay    time.Duration
}

// SessionOption tunes the service; used by tests to shrink delays.
type SessionOption func(*sessionService)

// WithVerifyPolicy overrides the append-visibility verification policy.
func WithVerifyPolicy(attempts int, delay time.Duration) SessionOption {
	return func(s *sessionService) {
		s.verifyAttempts = attempts
		s.verifyDelay = delay
	}
}

// NewSessionService builds the session manager. producer may be nil.
func NewSessionService(summaries repository.SummaryRepository, scans repository.ScanRepository, producer *events.Producer, opts ...SessionOption) SessionService {
	s := &sessionService{
		summaries:      summaries,
		scans:          scans,
		producer:       producer,
		verifyAttempts: 3,
		verifyDelay:    300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(location string, month, year int) string {
	return fmt.Sprintf("%s|%02d|%d", location, month, year)
}

func (s *sessionService) FindOrCreateMonthlySummary(ctx context.Context, location string, month, year int, user, userName string) (*model.MonthlySummary, error) {
	unlock := s.locks.lock(sessionKey(location, month, year))
	defer unlock()
	return s.findOrCreateLocked(ctx, location, month, year, user, userName)
}

func (s *sessionService) findOrCreateLocked(ctx context.Context, location string, month, year int, user, userName string) (*model.MonthlySummary, error) {
	if existing, err := s.findActive(ctx, location, month, year); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	summary := &model.MonthlySummary{
		Location:   location,
		Month:      month,
		Year:       year,
		Status:     model.StatusActive,
		CreatedAt:  time.Now(),
		CreatedBy:  user,
		UserName:   userName,
		TotalScans: 0,
		SessionID:  uuid.NewString(),
	}
	if err := s.summaries.Append(ctx, summary); err != nil {
		return nil, err
	}

	// The backing store may lag behind its own appends. Verify the row is
	// visible before returning; surfacing a retriable error beats silently
	// creating a duplicate on the next call.
	for attempt := 1; attempt <= s.verifyAttempts; attempt++ {
		found, err := s.findActive(ctx, location, month, year)
		if err != nil {
			return nil, err
		}
		if found != nil {
			// A concurrent creator may have won the race in another
			// process; its row counts as success, never as a reason to
			// retry creation.
			return found, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.verifyDelay * time.Duration(attempt)):
		}
	}
	return nil, apperr.Retriable(fmt.Errorf("summary row for %s %02d/%d not visible after append", location, month, year))
}

// findActive returns the Active row for a key, logging loudly when the
// single-active invariant is broken.
func (s *sessionService) findActive(ctx context.Context, location string, month, year int) (*model.MonthlySummary, error) {
	rows, err := s.summaries.FindAllByKey(ctx, location, month, year)
	if err != nil {
		return nil, err
	}
	var active []*model.MonthlySummary
	for _, row := range rows {
		if row.Status == model.StatusActive {
			active = append(active, row)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	if len(active) > 1 {
		log.Error("duplicate active summary rows detected",
			apperr.Integrityf("%d active rows for %s %02d/%d", len(active), location, month, year))
		sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	}
	return active[0], nil
}

func (s *sessionService) UpdateMonthlySummary(ctx context.Context, location string, month, year, increment int) (*model.MonthlySummary, error) {
	unlock := s.locks.lock(sessionKey(location, month, year))
	defer unlock()
	return s.updateLocked(ctx, location, month, year, increment)
}

func (s *sessionService) updateLocked(ctx context.Context, location string, month, year, increment int) (*model.MonthlySummary, error) {
	summary, err := s.findActive(ctx, location, month, year)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		// Fall back to any row for the key; the operation still refuses to
		// create one.
		summary, err = s.summaries.FindByKey(ctx, location, month, year)
		if err != nil {
			return nil, err
		}
	}
	if summary == nil {
		return nil, apperr.NotFound("monthly summary", sessionKey(location, month, year))
	}

	summary.TotalScans += increment
	if summary.TotalScans < 0 {
		summary.TotalScans = 0
	}
	if err := s.summaries.Update(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *sessionService) SaveScan(ctx context.Context, input ScanInput) (*ScanResult, error) {
	if err := validateScanInput(input); err != nil {
		return nil, err
	}
	identifier := input.Identifier
	if validate.IsSerial(identifier) {
		identifier = validate.NormalizeSerial(identifier)
	}

	unlock := s.locks.lock(sessionKey(input.Location, input.Month, input.Year))
	defer unlock()

	active, err := s.findActive(ctx, input.Location, input.Month, input.Year)
	if err != nil {
		return nil, err
	}
	if active == nil {
		// Brand-new session request: the two-per-month ceiling applies.
		limits, err := s.checkLimitsUnlocked(ctx, input.Location, input.Month, input.Year)
		if err != nil {
			return nil, err
		}
		if !limits.CanStart {
			return nil, apperr.Conflictf("cannot start a new session for %s: %s", input.Location, limits.Reason)
		}
	}

	// Duplicate detection: the location sheet holds exactly the current
	// session's rows (it is cleared when a session closes out).
	existing, err := s.scans.ListByLocation(ctx, input.Location)
	if err != nil {
		return nil, err
	}
	for _, rec := range existing {
		if rec.Identifier == identifier {
			return nil, apperr.Conflictf("identifier %s already scanned in the current session", identifier)
		}
	}

	summary, err := s.findOrCreateLocked(ctx, input.Location, input.Month, input.Year, input.User, input.UserName)
	if err != nil {
		return nil, err
	}

	record := &model.ScanRecord{
		Date:       time.Now().Format(model.DateLayout),
		Identifier: identifier,
		ScannedBy:  input.UserName,
	}
	if input.Car != nil {
		record.Serie = validate.NormalizeSerial(input.Car.Serie)
		record.Marca = input.Car.Marca
		record.Color = input.Car.Color
		record.Ubicacion = input.Car.Ubicacion
	}

	// Append first, then increment: a crash between the two undercounts,
	// and FinishSession's authoritative recount repairs the drift.
	if err := s.scans.Append(ctx, input.Location, record); err != nil {
		return nil, err
	}
	summary, err = s.updateLocked(ctx, input.Location, input.Month, input.Year, 1)
	if err != nil {
		return nil, err
	}

	s.producer.Publish(ctx, events.TypeScanRecorded, map[string]interface{}{
		"location":   input.Location,
		"identifier": identifier,
		"sessionId":  summary.SessionID,
		"totalScans": summary.TotalScans,
	})

	return &ScanResult{Summary: summary, Record: record}, nil
}

func validateScanInput(input ScanInput) error {
	if input.Location == "" {
		return apperr.Validationf("location", "location is required")
	}
	if input.User == "" {
		return apperr.Validationf("user", "user is required")
	}
	if input.UserName == "" {
		return apperr.Validationf("userName", "userName is required")
	}
	if !validate.IsMonth(input.Month) {
		return apperr.Validationf("month", "month must be between 1 and 12")
	}
	if !validate.IsYear(input.Year) {
		return apperr.Validationf("year", "year %d is out of range", input.Year)
	}
	if !validate.IsIdentifier(input.Identifier) {
		return apperr.Validationf("identifier", "must be an 8-digit barcode or a 17-character serial")
	}
	if input.Car != nil {
		if input.Car.Serie == "" || input.Car.Marca == "" || input.Car.Color == "" || input.Car.Ubicacion == "" {
			return apperr.Validationf("carData", "serie, marca, color and ubicacion are all required")
		}
		if !validate.IsSerial(input.Car.Serie) {
			return apperr.Validationf("carData.serie", "must be a 17-character alphanumeric serial")
		}
	}
	return nil
}

func (s *sessionService) CheckInventoryLimits(ctx context.Context, location string, month, year int) (*LimitsResult, error) {
	return s.checkLimitsUnlocked(ctx, location, month, year)
}

// checkLimitsUnlocked counts rows of any status: two completed sessions
// block a third even though neither is active.
func (s *sessionService) checkLimitsUnlocked(ctx context.Context, location string, month, year int) (*LimitsResult, error) {
	rows, err := s.summaries.FindAllByKey(ctx, location, month, year)
	if err != nil {
		return nil, err
	}
	result := &LimitsResult{CurrentMonthCount: len(rows)}
	for _, row := range rows {
		if row.Status == model.StatusActive {
			result.ActiveCount++
		}
	}
	switch {
	case result.CurrentMonthCount >= MaxSessionsPerMonth:
		result.Reason = fmt.Sprintf("monthly session limit of %d reached", MaxSessionsPerMonth)
	case result.ActiveCount >= 1:
		result.Reason = "an inventory session is already active"
	default:
		result.CanStart = true
	}
	return result, nil
}

func (s *sessionService) FinishSession(ctx context.Context, location string, month, year int, user string) (*model.MonthlySummary, error) {
	unlock := s.locks.lock(sessionKey(location, month, year))
	defer unlock()

	rows, err := s.summaries.FindAllByKey(ctx, location, month, year)
	if err != nil {
		return nil, err
	}
	var active *model.MonthlySummary
	completed := false
	for _, row := range rows {
		switch row.Status {
		case model.StatusActive:
			if active == nil {
				active = row
			}
		case model.StatusCompleted:
			completed = true
		}
	}
	if active == nil {
		if completed {
			// Distinct from "not found" so racing finishers can treat it as
			// benign.
			return nil, apperr.Conflictf("inventory session for %s %02d/%d already completed", location, month, year)
		}
		return nil, apperr.NotFound("active session", sessionKey(location, month, year))
	}

	// The summary counter may be stale after retried increments; the scan
	// sheet is the authority.
	scanRows, err := s.scans.ListByLocation(ctx, location)
	if err != nil {
		return nil, err
	}

	active.Status = model.StatusCompleted
	active.CompletedAt = time.Now()
	active.CompletedBy = user
	active.TotalScans = len(scanRows)
	if err := s.summaries.Update(ctx, active); err != nil {
		return nil, err
	}

	s.producer.Publish(ctx, events.TypeSessionCompleted, map[string]interface{}{
		"location":   location,
		"sessionId":  active.SessionID,
		"totalScans": active.TotalScans,
	})

	return active, nil
}

func (s *sessionService) FetchMonthlyData(ctx context.Context, location string, month, year int) (*model.MonthlySummary, []*model.ScanRecord, error) {
	summary, err := s.summaries.FindByKey(ctx, location, month, year)
	if err != nil {
		return nil, nil, err
	}
	if summary == nil {
		return nil, nil, apperr.NotFound("monthly summary", sessionKey(location, month, year))
	}
	scans, err := s.scans.ListByLocation(ctx, location)
	if err != nil {
		return nil, nil, err
	}
	return summary, scans, nil
}

// DeleteScan removes a single scan row before backup (correction requests)
// and decrements the session counter to match.
func (s *sessionService) DeleteScan(ctx context.Context, location string, month, year int, identifier string) error {
	if validate.IsSerial(identifier) {
		identifier = validate.NormalizeSerial(identifier)
	}

	unlock := s.locks.lock(sessionKey(location, month, year))
	defer unlock()

	scans, err := s.scans.ListByLocation(ctx, location)
	if err != nil {
		return err
	}
	for _, rec := range scans {
		if rec.Identifier == identifier {
			if err := s.scans.BlankRow(ctx, location, rec.RowIndex); err != nil {
				return err
			}
			_, err = s.updateLocked(ctx, location, month, year, -1)
			return err
		}
	}
	return apperr.NotFound("scan", identifier)
}

func (s *sessionService) ClearAgencyDataAfterDownload(ctx context.Context, location string, month, year int, sessionID string) error {
	unlock := s.locks.lock(sessionKey(location, month, year))
	defer unlock()

	rows, err := s.summaries.FindAllByKey(ctx, location, month, year)
	if err != nil {
		return err
	}
	var session *model.MonthlySummary
	for _, row := range rows {
		if row.SessionID == sessionID {
			session = row
			break
		}
	}
	if session == nil {
		return apperr.NotFound("session", sessionID)
	}
	// The sheet is only cleared once the session is closed and the caller
	// has confirmed a durable backup; summaries are never touched here.
	if session.Status != model.StatusCompleted {
		return apperr.Conflictf("session %s is not completed; refusing to clear scan data", sessionID)
	}
	return s.scans.Clear(ctx, location)
}

func (s *sessionService) CleanupDuplicateRows(ctx context.Context) (int, error) {
	all, err := s.summaries.All(ctx)
	if err != nil {
		return 0, err
	}
	return s.cleanup(ctx, all)
}

func (s *sessionService) CleanupSpecificDuplicates(ctx context.Context, location string, month, year int) (int, error) {
	rows, err := s.summaries.FindAllByKey(ctx, location, month, year)
	if err != nil {
		return 0, err
	}
	return s.cleanup(ctx, rows)
}

// cleanup blanks duplicate rows sharing (location, month, year, status),
// retaining the earliest createdAt; ties fall back to highest totalScans.
// Remediation only, never on the normal write path.
func (s *sessionService) cleanup(ctx context.Context, rows []*model.MonthlySummary) (int, error) {
	groups := make(map[string][]*model.MonthlySummary)
	for _, row := range rows {
		key := sessionKey(row.Location, row.Month, row.Year) + "|" + string(row.Status)
		groups[key] = append(groups[key], row)
	}

	removed := 0
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		log.Error("duplicate summary rows found", apperr.Integrityf("%d rows share key %s", len(group), key))
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].TotalScans > group[j].TotalScans
		})
		for _, dup := range group[1:] {
			if err := s.summaries.BlankRow(ctx, dup.RowIndex); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// keyedMutex serializes operations per (location, month, year) without a
// global lock across unrelated keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

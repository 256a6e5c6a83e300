package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
	"inventario-go/internal/repository"
	"inventario-go/pkg/sheets"
)

const testLocation = "Agencia Norte"

type sessionFixture struct {
	store     *sheets.MemoryStore
	summaries repository.SummaryRepository
	scans     repository.ScanRepository
	service   SessionService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	store := sheets.NewMemoryStore()
	summaries := repository.NewSummaryRepository(store)
	scans := repository.NewScanRepository(store)
	return &sessionFixture{
		store:     store,
		summaries: summaries,
		scans:     scans,
		service:   NewSessionService(summaries, scans, nil, WithVerifyPolicy(1, time.Millisecond)),
	}
}

func scanInput(identifier string) ScanInput {
	return ScanInput{
		Location:   testLocation,
		Month:      3,
		Year:       2025,
		Identifier: identifier,
		User:       "jlopez",
		UserName:   "Juan López",
	}
}

func TestSaveScanAccumulatesTotals(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	first, err := f.service.SaveScan(ctx, scanInput("ABC12345"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Summary.TotalScans)
	assert.Equal(t, model.StatusActive, first.Summary.Status)

	second, err := f.service.SaveScan(ctx, scanInput("ABC12346"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Summary.TotalScans)
	assert.Equal(t, first.Summary.SessionID, second.Summary.SessionID)

	summary, err := f.service.FinishSession(ctx, testLocation, 3, 2025, "jlopez")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.TotalScans)
}

func TestSaveScanValidation(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input ScanInput
	}{
		{"bad identifier", scanInput("not-valid")},
		{"short barcode", scanInput("1234567")},
		{"missing location", func() ScanInput { in := scanInput("12345678"); in.Location = ""; return in }()},
		{"missing user", func() ScanInput { in := scanInput("12345678"); in.User = ""; return in }()},
		{"missing user name", func() ScanInput { in := scanInput("12345678"); in.UserName = ""; return in }()},
		{"bad month", func() ScanInput { in := scanInput("12345678"); in.Month = 13; return in }()},
		{"partial car data", func() ScanInput {
			in := scanInput("1HGBH41JXMN109186")
			in.Car = &CarData{Serie: "1HGBH41JXMN109186", Marca: "Honda"}
			return in
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.SaveScan(ctx, tc.input)
			assert.True(t, apperr.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestSaveScanNormalizesSerial(t *testing.T) {
	f := newSessionFixture(t)

	result, err := f.service.SaveScan(context.Background(), scanInput("1hgbh41jxmn109186"))
	require.NoError(t, err)
	assert.Equal(t, "1HGBH41JXMN109186", result.Record.Identifier)
}

func TestSaveScanRejectsDuplicateIdentifier(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.service.SaveScan(ctx, scanInput("12345678"))
	require.NoError(t, err)

	_, err = f.service.SaveScan(ctx, scanInput("12345678"))
	assert.True(t, apperr.IsConflict(err), "expected conflict, got %v", err)

	// The failed scan must not bump the counter.
	summary, err := f.summaries.FindByKey(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalScans)
}

func TestFindOrCreateIsIdempotentUnderConcurrency(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	const goroutines = 16
	var wg sync.WaitGroup
	ids := make([]string, goroutines)
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summary, err := f.service.FindOrCreateMonthlySummary(ctx, testLocation, 3, 2025, "jlopez", "Juan López")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = summary.SessionID
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	rows, err := f.summaries.FindAllByKey(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	for _, id := range ids {
		assert.Equal(t, rows[0].SessionID, id)
	}
}

func TestUpdateNeverCreates(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.service.UpdateMonthlySummary(context.Background(), testLocation, 3, 2025, 1)
	assert.True(t, apperr.IsNotFound(err), "expected not found, got %v", err)
}

func TestUpdateClampsNegativeTotals(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.service.FindOrCreateMonthlySummary(ctx, testLocation, 3, 2025, "jlopez", "Juan López")
	require.NoError(t, err)

	summary, err := f.service.UpdateMonthlySummary(ctx, testLocation, 3, 2025, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalScans)
}

func TestLimitsCountRowsOfAnyStatus(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	seed := func(status model.SessionStatus) {
		require.NoError(t, f.summaries.Append(ctx, &model.MonthlySummary{
			Location:  testLocation,
			Month:     3,
			Year:      2025,
			Status:    status,
			CreatedAt: time.Now(),
			SessionID: string(status),
		}))
	}
	seed(model.StatusCompleted)
	seed(model.StatusCompleted)

	limits, err := f.service.CheckInventoryLimits(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	assert.False(t, limits.CanStart)
	assert.Equal(t, 2, limits.CurrentMonthCount)
	assert.Equal(t, 0, limits.ActiveCount)

	// Two completed sessions block a third from starting.
	_, err = f.service.SaveScan(ctx, scanInput("12345678"))
	assert.True(t, apperr.IsConflict(err), "expected conflict, got %v", err)
}

func TestLimitsAllowFreshMonth(t *testing.T) {
	f := newSessionFixture(t)

	limits, err := f.service.CheckInventoryLimits(context.Background(), testLocation, 3, 2025)
	require.NoError(t, err)
	assert.True(t, limits.CanStart)
}

func TestFinishSessionRecountsFromScanSheet(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	for _, id := range []string{"12345678", "12345679", "12345680"} {
		_, err := f.service.SaveScan(ctx, scanInput(id))
		require.NoError(t, err)
	}

	// Drift the counter away from the truth; the scan sheet wins.
	summary, err := f.summaries.FindByKey(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	summary.TotalScans = 99
	require.NoError(t, f.summaries.Update(ctx, summary))

	finished, err := f.service.FinishSession(ctx, testLocation, 3, 2025, "mgarcia")
	require.NoError(t, err)
	assert.Equal(t, 3, finished.TotalScans)
	assert.Equal(t, "mgarcia", finished.CompletedBy)
	assert.False(t, finished.CompletedAt.IsZero())
}

func TestFinishSessionStatuses(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.service.FinishSession(ctx, testLocation, 3, 2025, "jlopez")
	assert.True(t, apperr.IsNotFound(err), "expected not found, got %v", err)

	_, err = f.service.SaveScan(ctx, scanInput("12345678"))
	require.NoError(t, err)
	_, err = f.service.FinishSession(ctx, testLocation, 3, 2025, "jlopez")
	require.NoError(t, err)

	_, err = f.service.FinishSession(ctx, testLocation, 3, 2025, "jlopez")
	assert.True(t, apperr.IsConflict(err), "expected conflict, got %v", err)
}

func TestDeleteScanDecrementsCounter(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.service.SaveScan(ctx, scanInput("12345678"))
	require.NoError(t, err)
	_, err = f.service.SaveScan(ctx, scanInput("12345679"))
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteScan(ctx, testLocation, 3, 2025, "12345678"))

	summary, scans, err := f.service.FetchMonthlyData(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalScans)
	require.Len(t, scans, 1)
	assert.Equal(t, "12345679", scans[0].Identifier)

	err = f.service.DeleteScan(ctx, testLocation, 3, 2025, "00000000")
	assert.True(t, apperr.IsNotFound(err), "expected not found, got %v", err)
}

func TestClearRequiresCompletedSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	result, err := f.service.SaveScan(ctx, scanInput("12345678"))
	require.NoError(t, err)
	sessionID := result.Summary.SessionID

	err = f.service.ClearAgencyDataAfterDownload(ctx, testLocation, 3, 2025, sessionID)
	assert.True(t, apperr.IsConflict(err), "expected conflict, got %v", err)

	_, err = f.service.FinishSession(ctx, testLocation, 3, 2025, "jlopez")
	require.NoError(t, err)
	require.NoError(t, f.service.ClearAgencyDataAfterDownload(ctx, testLocation, 3, 2025, sessionID))

	scans, err := f.scans.ListByLocation(ctx, testLocation)
	require.NoError(t, err)
	assert.Empty(t, scans)

	// The summary row survives the clear.
	summary, err := f.summaries.FindByKey(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, model.StatusCompleted, summary.Status)
}

func TestCleanupKeepsEarliestRow(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	seed := func(id string, createdAt time.Time, total int) {
		require.NoError(t, f.summaries.Append(ctx, &model.MonthlySummary{
			Location:   testLocation,
			Month:      3,
			Year:       2025,
			Status:     model.StatusActive,
			CreatedAt:  createdAt,
			TotalScans: total,
			SessionID:  id,
		}))
	}
	seed("keep", base, 5)
	seed("dup-later", base.Add(time.Minute), 9)
	seed("dup-latest", base.Add(2*time.Minute), 1)

	removed, err := f.service.CleanupSpecificDuplicates(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	rows, err := f.summaries.FindAllByKey(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "keep", rows[0].SessionID)
}

func TestCleanupTieBreaksOnTotalScans(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	createdAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		id    string
		total int
	}{{"low", 2}, {"high", 7}} {
		require.NoError(t, f.summaries.Append(ctx, &model.MonthlySummary{
			Location:   testLocation,
			Month:      3,
			Year:       2025,
			Status:     model.StatusActive,
			CreatedAt:  createdAt,
			TotalScans: tc.total,
			SessionID:  tc.id,
		}))
	}

	removed, err := f.service.CleanupDuplicateRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	rows, err := f.summaries.FindAllByKey(ctx, testLocation, 3, 2025)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "high", rows[0].SessionID)
}

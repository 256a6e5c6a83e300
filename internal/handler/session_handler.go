package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
	"inventario-go/internal/service"
	"inventario-go/pkg/log"
)

// SessionHandler serves the inventory session endpoints, including the
// finish-and-backup close-out flow.
type SessionHandler struct {
	sessions service.SessionService
	exports  service.ExportService
	storage  service.StorageService
}

// NewSessionHandler creates a new SessionHandler instance.
func NewSessionHandler(sessions service.SessionService, exports service.ExportService, storage service.StorageService) *SessionHandler {
	return &SessionHandler{sessions: sessions, exports: exports, storage: storage}
}

// monthYearQuery parses the common location/month/year query triple.
func monthYearQuery(c *gin.Context) (string, int, int, bool) {
	location := c.Query("location")
	month, errM := strconv.Atoi(c.Query("month"))
	year, errY := strconv.Atoi(c.Query("year"))
	if location == "" || errM != nil || errY != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location, month and year query parameters are required"})
		return "", 0, 0, false
	}
	return location, month, year, true
}

// GetInventory returns the monthly summary and its scan rows.
func (h *SessionHandler) GetInventory(c *gin.Context) {
	location, month, year, ok := monthYearQuery(c)
	if !ok {
		return
	}

	summary, scans, err := h.sessions.FetchMonthlyData(c.Request.Context(), location, month, year)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summaryJSON(summary),
		"scans":   scans,
	})
}

// GetLimits reports whether a new session may start for the key.
func (h *SessionHandler) GetLimits(c *gin.Context) {
	location, month, year, ok := monthYearQuery(c)
	if !ok {
		return
	}

	limits, err := h.sessions.CheckInventoryLimits(c.Request.Context(), location, month, year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

// FinishRequest closes the active session for a key.
type FinishRequest struct {
	Location string `json:"location" binding:"required"`
	Month    int    `json:"month" binding:"required"`
	Year     int    `json:"year" binding:"required"`
	User     string `json:"user" binding:"required"`
}

// FinishSession marks the active session Completed with a recounted total.
func (h *SessionHandler) FinishSession(c *gin.Context) {
	var req FinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	summary, err := h.sessions.FinishSession(c.Request.Context(), req.Location, req.Month, req.Year, req.User)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("session %s finished for %s with %d scans", summary.SessionID, req.Location, summary.TotalScans)
	c.JSON(http.StatusOK, summaryJSON(summary))
}

// FinishAndBackupRequest drives the full close-out: finish, export, store,
// clear.
type FinishAndBackupRequest struct {
	Location string `json:"location" binding:"required"`
	Month    int    `json:"month" binding:"required"`
	Year     int    `json:"year" binding:"required"`
	User     string `json:"user" binding:"required"`
	Format   string `json:"format"` // csv or xlsx; defaults to xlsx
}

// FinishAndBackup finishes the active session, exports its data, stores the
// backup and only then clears the scan sheet. A storage failure leaves the
// scan data untouched.
func (h *SessionHandler) FinishAndBackup(c *gin.Context) {
	var req FinishAndBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	format := req.Format
	if format == "" {
		format = "xlsx"
	}
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}
	ctx := c.Request.Context()

	summary, err := h.sessions.FinishSession(ctx, req.Location, req.Month, req.Year, req.User)
	if err != nil {
		if !apperr.IsConflict(err) {
			respondError(c, err)
			return
		}
		// Already completed: a prior close-out attempt finished the session
		// and then failed at export or store. Resume from the completed row
		// so the backup and clear stay reachable.
		summary, _, err = h.sessions.FetchMonthlyData(ctx, req.Location, req.Month, req.Year)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	var content []byte
	if format == "csv" {
		content, err = h.exports.ExportCSV(ctx, req.Location, req.Month, req.Year)
	} else {
		content, err = h.exports.ExportXLSX(ctx, req.Location, req.Month, req.Year)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.storage.StoreFile(ctx, req.Location, req.Month, req.Year, format, content)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.sessions.ClearAgencyDataAfterDownload(ctx, req.Location, req.Month, req.Year, summary.SessionID); err != nil {
		// The backup is already durable; report the failed clear and let the
		// caller retry it.
		log.Errorf("backup %s stored but clearing %s failed: %v", record.FileID, req.Location, err)
		c.JSON(http.StatusOK, gin.H{
			"summary": summaryJSON(summary),
			"fileId":  record.FileID,
			"cleared": false,
		})
		return
	}

	log.Infof("session %s backed up as %s and cleared", summary.SessionID, record.FileID)
	c.JSON(http.StatusOK, gin.H{
		"summary": summaryJSON(summary),
		"fileId":  record.FileID,
		"cleared": true,
	})
}

// CleanupRequest targets one key; with no body the whole sheet is swept.
type CleanupRequest struct {
	Location string `json:"location"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
}

// CleanupDuplicates blanks duplicate summary rows.
func (h *SessionHandler) CleanupDuplicates(c *gin.Context) {
	var req CleanupRequest
	_ = c.ShouldBindJSON(&req)

	var removed int
	var err error
	if req.Location != "" {
		removed, err = h.sessions.CleanupSpecificDuplicates(c.Request.Context(), req.Location, req.Month, req.Year)
	} else {
		removed, err = h.sessions.CleanupDuplicateRows(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func summaryJSON(s *model.MonthlySummary) gin.H {
	out := gin.H{
		"location":   s.Location,
		"month":      s.Month,
		"year":       s.Year,
		"status":     s.Status,
		"totalScans": s.TotalScans,
		"sessionId":  s.SessionID,
		"createdAt":  s.CreatedAt.Format(model.TimeLayout),
		"createdBy":  s.CreatedBy,
	}
	if !s.CompletedAt.IsZero() {
		out["completedAt"] = s.CompletedAt.Format(model.TimeLayout)
		out["completedBy"] = s.CompletedBy
	}
	return out
}

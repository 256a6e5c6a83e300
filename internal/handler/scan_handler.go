package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inventario-go/internal/service"
	"inventario-go/pkg/log"
)

// ScanHandler serves the scan recording endpoints.
type ScanHandler struct {
	sessions service.SessionService
	labels   service.LabelService
}

// NewScanHandler creates a new ScanHandler instance.
func NewScanHandler(sessions service.SessionService, labels service.LabelService) *ScanHandler {
	return &ScanHandler{sessions: sessions, labels: labels}
}

// SaveScan records one manually entered identifier.
func (h *ScanHandler) SaveScan(c *gin.Context) {
	var input service.ScanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	result, err := h.sessions.SaveScan(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("scan %s recorded for %s (total %d)", result.Record.Identifier, input.Location, result.Summary.TotalScans)
	c.JSON(http.StatusOK, gin.H{
		"identifier": result.Record.Identifier,
		"sessionId":  result.Summary.SessionID,
		"totalScans": result.Summary.TotalScans,
		"status":     result.Summary.Status,
	})
}

// QRScanRequest carries a raw decoded QR payload.
type QRScanRequest struct {
	Payload  string `json:"payload" binding:"required"`
	Month    int    `json:"month" binding:"required"`
	Year     int    `json:"year" binding:"required"`
	User     string `json:"user" binding:"required"`
	UserName string `json:"userName" binding:"required"`
}

// SaveQRScan decodes a scanned label payload and records it with its car data.
func (h *ScanHandler) SaveQRScan(c *gin.Context) {
	var req QRScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	result, err := h.labels.ScanPayload(c.Request.Context(), req.Payload, req.Month, req.Year, req.User, req.UserName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identifier": result.Record.Identifier,
		"carData": gin.H{
			"serie":     result.Record.Serie,
			"marca":     result.Record.Marca,
			"color":     result.Record.Color,
			"ubicacion": result.Record.Ubicacion,
		},
		"sessionId":  result.Summary.SessionID,
		"totalScans": result.Summary.TotalScans,
	})
}

// DeleteScanRequest identifies one scan row to remove before backup.
type DeleteScanRequest struct {
	Location   string `json:"location" binding:"required"`
	Month      int    `json:"month" binding:"required"`
	Year       int    `json:"year" binding:"required"`
	Identifier string `json:"identifier" binding:"required"`
}

// DeleteScan removes a mis-scanned identifier and decrements the counter.
func (h *ScanHandler) DeleteScan(c *gin.Context) {
	var req DeleteScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	if err := h.sessions.DeleteScan(c.Request.Context(), req.Location, req.Month, req.Year, req.Identifier); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "scan removed"})
}

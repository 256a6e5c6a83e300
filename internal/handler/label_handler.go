package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"inventario-go/internal/service"
	"inventario-go/pkg/log"
)

// LabelHandler serves the QR label generation pipeline.
type LabelHandler struct {
	labels service.LabelService
}

// NewLabelHandler creates a new LabelHandler instance.
func NewLabelHandler(labels service.LabelService) *LabelHandler {
	return &LabelHandler{labels: labels}
}

// Upload accepts a CSV of car rows, generates the label batch and returns its
// sessionId for later archive download.
func (h *LabelHandler) Upload(c *gin.Context) {
	location := c.PostForm("location")
	user := c.PostForm("user")
	userName := c.PostForm("userName")
	if location == "" || user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location and user form fields are required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		respondError(c, err)
		return
	}

	batch, err := h.labels.GenerateFromCSV(c.Request.Context(), fileBytes, location, user, userName)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("generated %d labels for %s (batch %s)", len(batch.Images), location, batch.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"sessionId": batch.SessionID,
		"labels":    len(batch.Images),
		"archive":   service.ArchiveName(batch.SessionID),
	})
}

// DownloadArchive streams a generated batch's zip.
func (h *LabelHandler) DownloadArchive(c *gin.Context) {
	sessionID := c.Param("sessionId")

	data, err := h.labels.DownloadArchive(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	name := service.ArchiveName(sessionID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/zip", data)
}

package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"inventario-go/internal/model"
	"inventario-go/internal/service"
)

// FileHandler serves the stored backup file endpoints.
type FileHandler struct {
	storage service.StorageService
}

// NewFileHandler creates a new FileHandler instance.
func NewFileHandler(storage service.StorageService) *FileHandler {
	return &FileHandler{storage: storage}
}

// List returns a location's stored files, newest first.
func (h *FileHandler) List(c *gin.Context) {
	location := c.Query("location")
	if location == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location query parameter is required"})
		return
	}

	records, err := h.storage.ListFiles(c.Request.Context(), location)
	if err != nil {
		respondError(c, err)
		return
	}

	files := make([]gin.H, 0, len(records))
	for _, rec := range records {
		files = append(files, gin.H{
			"fileId":        rec.FileID,
			"filename":      rec.Filename,
			"type":          rec.Type,
			"size":          rec.Size,
			"uploadedAt":    rec.UploadedAt.Format(model.TimeLayout),
			"expiresAt":     rec.ExpiresAt.Format(model.TimeLayout),
			"downloadCount": rec.DownloadCount,
			"status":        rec.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// Download streams one stored file by its fileId.
func (h *FileHandler) Download(c *gin.Context) {
	fileID := c.Param("fileId")

	content, record, err := h.storage.DownloadFile(c.Request.Context(), fileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))
	c.Data(http.StatusOK, contentTypeOf(record.Type), content)
}

func contentTypeOf(fileType string) string {
	switch fileType {
	case "csv":
		return "text/csv"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

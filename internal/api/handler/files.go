package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/logger"
	"github.com/granarylabs/granary/internal/status"
)

// FilesHandler exposes the tracked file records.
type FilesHandler struct {
	store *status.Store
}

// NewFilesHandler creates a new files handler.
// Parameters:
//   - store: status store holding the file records.
// Returns:
//   - *FilesHandler: initialized handler.
func NewFilesHandler(store *status.Store) *FilesHandler {
	return &FilesHandler{store: store}
}

// FileListResponse represents the file listing API response.
type FileListResponse struct {
	Files []domain.FileRecord `json:"files"`
	Total int                 `json:"total"`
}

// ListFiles returns the tracked file records, optionally filtered by status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FilesHandler) ListFiles(c *gin.Context) {
	filter := domain.FileStatus(c.Query("status"))

	all := h.store.All()
	files := make([]domain.FileRecord, 0, len(all))
	for _, rec := range all {
		if filter != "" && rec.Status != filter {
			continue
		}
		files = append(files, rec)
	}

	c.JSON(http.StatusOK, FileListResponse{
		Files: files,
		Total: len(files),
	})
}

// GetFile returns one file record looked up by its path.
// Parameters:
//   - c: Gin request context with a "path" query parameter.
// Returns: none (writes JSON response).
func (h *FilesHandler) GetFile(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}

	rec, ok := h.store.Get(domain.NormalizePath(path))
	if !ok {
		logger.CtxDebug(c.Request.Context(), "File record not found: path=%s", path)
		c.JSON(http.StatusNotFound, gin.H{"error": "no record for " + path})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetStats returns per-status record counts.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FilesHandler) GetStats(c *gin.Context) {
	stats := h.store.Stats()

	counts := make(map[string]int, len(stats))
	total := 0
	for st, n := range stats {
		counts[string(st)] = n
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"total":       total,
		"by_status":   counts,
		"max_retries": h.store.MaxRetries(),
	})
}

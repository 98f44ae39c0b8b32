package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sriaudit/comprobantes-api/internal/archive"
	"github.com/sriaudit/comprobantes-api/internal/models"
	"github.com/sriaudit/comprobantes-api/internal/service"
	"github.com/sriaudit/comprobantes-api/internal/session"
)

// Handlers exposes the HTTP surface over the download pipeline
type Handlers struct {
	container *service.Container
}

func NewHandlers(container *service.Container) *Handlers {
	return &Handlers{container: container}
}

// CreateDownload runs a retrieval synchronously and returns its summary.
// Runs are long; clients should configure their timeouts accordingly.
func (h *Handlers) CreateDownload(c *gin.Context) {
	var req models.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_request", "VALIDATION_ERROR", err.Error())
		return
	}

	summary, err := h.container.Download.Run(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			h.fail(c, http.StatusBadRequest, "invalid_request", "VALIDATION_ERROR", err.Error())
		case errors.Is(err, session.ErrAuth):
			h.fail(c, http.StatusUnauthorized, "authentication_failed", "AUTH_FAILED",
				"El portal rechazó las credenciales")
		default:
			// Portal-stage failures still carry a summary with estado error
			if summary != nil {
				c.JSON(http.StatusBadGateway, summary)
				return
			}
			h.fail(c, http.StatusBadGateway, "portal_error", "PORTAL_ERROR", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListHistory returns recorded runs, newest first
func (h *Handlers) ListHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"historial": h.container.History.List()})
}

// DownloadZip streams a zip of everything a run downloaded
func (h *Handlers) DownloadZip(c *gin.Context) {
	id := c.Param("id")

	destDir, err := h.container.Download.DestinoFor(id)
	if err != nil {
		h.fail(c, http.StatusNotFound, "not_found", "RUN_NOT_FOUND", "Descarga no encontrada")
		return
	}

	zipPath := filepath.Join(os.TempDir(), id+".zip")
	if err := archive.ZipDir(destDir, zipPath); err != nil {
		h.fail(c, http.StatusInternalServerError, "archive_error", "ARCHIVE_ERROR", err.Error())
		return
	}
	defer os.Remove(zipPath)

	c.FileAttachment(zipPath, "comprobantes_"+id+".zip")
}

// Health reports overall service health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// Live is the liveness probe
func (h *Handlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready is the readiness probe: Redis state is informational because the
// session store degrades to files, but the browser must be up.
func (h *Handlers) Ready(c *gin.Context) {
	redisState := "disabled"
	if h.container.Redis != nil {
		redisState = "connected"
		if err := h.container.Redis.Ping(c.Request.Context()).Err(); err != nil {
			redisState = "unavailable"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"redis":  redisState,
	})
}

func (h *Handlers) fail(c *gin.Context, status int, errName, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error:     errName,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

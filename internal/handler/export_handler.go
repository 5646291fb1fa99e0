package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/middleware"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/service"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
	"github.com/scoutbase/portal-api/pkg/response"
)

// ExportHandler serves asynchronous roster report generation.
type ExportHandler struct {
	exports *service.ExportService
	logger  *zap.Logger
}

// NewExportHandler constructs the export handler.
func NewExportHandler(exports *service.ExportService, logger *zap.Logger) *ExportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportHandler{exports: exports, logger: logger}
}

// Create enqueues a new report job.
func (h *ExportHandler) Create(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	var req struct {
		Format models.ExportFormat `json:"format" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format is required"))
		return
	}

	job, err := h.exports.Request(c.Request.Context(), sess.UpstreamToken, req.Format, filtersFromQuery(c), sess.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status reports the current state of a job; a completed job carries its
// signed download token.
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Job(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download streams a generated file. The signed token is the only
// credential; the link works without a portal session until it expires.
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, name, err := h.exports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "text/csv"
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(name))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		h.logger.Warn("export download interrupted", zap.Error(err))
	}
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/middleware"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/service"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
	"github.com/scoutbase/portal-api/pkg/response"
)

// ListHandler serves the generic admin list views and the audit trail.
type ListHandler struct {
	lists  *service.ListService
	logger *zap.Logger
}

// NewListHandler constructs the list handler.
func NewListHandler(lists *service.ListService, logger *zap.Logger) *ListHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListHandler{lists: lists, logger: logger}
}

// List serves one page of an admin list resource.
func (h *ListHandler) List(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	resource := models.ListResource(c.Param("resource"))
	page, err := h.lists.Load(
		c.Request.Context(),
		sess.UpstreamToken,
		resource,
		intQuery(c, "page", 1),
		intQuery(c, "page_size", 0),
		filtersFromQuery(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, page.Items, &page.Pagination)
}

// AuditTrail serves the admin audit log with rendered timestamps.
func (h *ListHandler) AuditTrail(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	entries, meta, err := h.lists.AuditTrail(
		c.Request.Context(),
		sess.UpstreamToken,
		intQuery(c, "page", 1),
		intQuery(c, "page_size", 0),
		filtersFromQuery(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, &meta)
}

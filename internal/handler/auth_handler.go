// Package handler exposes the portal HTTP surface: auth and session
// endpoints, the pending-submission review workflow, roster statistics,
// generic admin lists, report exports and system probes.
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

// AuthHandler serves login, logout, refresh and invitation redemption.
type AuthHandler struct {
	auth    *service.AuthService
	invites *service.InviteService
	logger  *zap.Logger
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(auth *service.AuthService, invites *service.InviteService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, invites: invites, logger: logger}
}

// Login verifies credentials and issues a portal token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Logout terminates the caller's session everywhere. Calling it on a
// session that is already gone still succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	if err := h.auth.Logout(c.Request.Context(), claims.SessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Refresh exchanges a refresh token for a fresh access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed refresh payload"))
		return
	}
	resp, err := h.auth.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Me returns the authenticated caller's profile summary.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	sess, _ := middleware.SessionFromContext(c)
	info := models.UserInfo{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
	if sess != nil {
		info.Email = sess.Email
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// CreateInvite issues a one-time invitation. Admin only.
func (h *AuthHandler) CreateInvite(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	var req service.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed invite payload"))
		return
	}

	invite, code, err := h.invites.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	// the code is shown exactly once
	response.Created(c, gin.H{"invite": invite, "code": code})
}

// RedeemInvite consumes an invitation code.
func (h *AuthHandler) RedeemInvite(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invite code is required"))
		return
	}

	invite, err := h.invites.Redeem(c.Request.Context(), c.Param("id"), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invite, nil)
}

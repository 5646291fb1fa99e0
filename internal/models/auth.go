package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the portal roles.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleStateAdmin UserRole = "STATE_ADMIN"
	RoleLeader     UserRole = "LEADER"
	RoleScout      UserRole = "SCOUT"
)

// JWTClaims are the custom claims embedded in portal access tokens.
// SessionID binds the token to a revocable server-side session.
type JWTClaims struct {
	UserID    string   `json:"uid"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	SessionID string   `json:"sid"`
	jwt.RegisteredClaims
}

// Session is the server-side record backing an issued token pair. The
// upstream token is what the gateway presents to the membership API on the
// user's behalf.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	Role          UserRole  `json:"role"`
	UpstreamToken string    `json:"upstream_token"`
	RefreshToken  string    `json:"refresh_token"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
}

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse carries the issued token pair and profile summary.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
	User         UserInfo  `json:"user"`
}

// UserInfo is the profile summary returned alongside tokens.
type UserInfo struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	FullName     string   `json:"full_name"`
	Role         UserRole `json:"role"`
	Section      string   `json:"section,omitempty"`
	StateCouncil string   `json:"state_council,omitempty"`
}

// RefreshRequest exchanges a refresh token for a fresh access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Invite is an admin-issued user invitation. The one-time code is only
// ever returned at creation time; a bcrypt hash is what gets stored.
type Invite struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Role         UserRole  `json:"role"`
	Section      string    `json:"section,omitempty"`
	StateCouncil string    `json:"state_council,omitempty"`
	InvitedBy    string    `json:"invited_by"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

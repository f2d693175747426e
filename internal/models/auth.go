package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RegisterRequest creates a new account. The role is chosen once at
// registration and is immutable afterwards.
type RegisterRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=120"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=8"`
	Role      UserRole `json:"role" validate:"required,oneof=STUDENT TEACHER"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// AuthResponse returns the issued token and user info after login or
// registration. The token is opaque to clients.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	User      UserInfo  `json:"user"`
	IssuedAt  time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Role      UserRole `json:"role"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	DarkMode  bool     `json:"dark_mode"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

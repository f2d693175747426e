package models

import "time"

// UserRole represents the two account roles of the platform.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleTeacher UserRole = "TEACHER"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// User represents an account stored in the users table. The role is fixed at
// registration and never changes for the lifetime of the account.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Role         UserRole   `db:"role" json:"role"`
	AvatarURL    string     `db:"avatar_url" json:"avatar_url,omitempty"`
	Bio          string     `db:"bio" json:"bio,omitempty"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	Location     string     `db:"location" json:"location,omitempty"`
	Website      string     `db:"website" json:"website,omitempty"`
	DarkMode     bool       `db:"dark_mode" json:"dark_mode"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Presence is the volatile availability state kept alongside the profile.
type Presence struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	ExcludeID string
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
}

// UpdateProfileRequest carries the owner-editable profile attributes.
type UpdateProfileRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=120"`
	Bio       string `json:"bio" validate:"max=500"`
	Phone     string `json:"phone" validate:"max=32"`
	Location  string `json:"location" validate:"max=120"`
	Website   string `json:"website" validate:"omitempty,url"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// DarkModeRequest toggles the persisted dark-mode preference.
type DarkModeRequest struct {
	DarkMode bool `json:"dark_mode"`
}

// OnlineStatusRequest is posted by clients to refresh their presence.
type OnlineStatusRequest struct {
	Online bool `json:"online"`
}

// UserSummary is the listing shape used by the chat partner picker.
type UserSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Presence  Presence `json:"presence"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Package client implements the session-aware front end core: a persistent
// session store, the session controller state machine, the route guard and
// the REST client that talks to campusd.
package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/campusworks/campus/internal/models"
)

// User is the locally persisted account snapshot. Required fields are
// validated on load; a stored user failing validation is treated as absent.
type User struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Email     string          `json:"email" validate:"required,email"`
	Role      models.UserRole `json:"role" validate:"required"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	DarkMode  bool            `json:"dark_mode"`
}

// SessionStore persists the session across process restarts. Absent is
// expressed as (nil, "", nil), never as an error.
type SessionStore interface {
	Save(user *User, token string) error
	Load() (*User, string, error)
	Clear() error
}

const (
	userFileName  = "user.json"
	tokenFileName = "token"
)

// FileStore keeps the session in a state directory as two entries: the
// serialized user and the raw token, mirroring the two logical keys the
// session consists of.
type FileStore struct {
	dir      string
	validate *validator.Validate
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{dir: dir, validate: validator.New()}, nil
}

// Save writes both entries, each atomically. The token is written last, so a
// first save torn between the two leaves no token and Load reads the store as
// absent. A torn overwrite of an existing session can still pair the fresh
// user with the previous token; Load cannot detect that, and the session
// layer only overwrites with the same account's refreshed profile.
func (s *FileStore) Save(user *User, token string) error {
	if user == nil || token == "" {
		return fmt.Errorf("user and token required")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, userFileName), data); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, tokenFileName), []byte(token)); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Load returns the stored session. A missing entry, unparseable user or a
// user failing schema validation all read as absent.
func (s *FileStore) Load() (*User, string, error) {
	rawToken, err := os.ReadFile(filepath.Join(s.dir, tokenFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(rawToken))
	if token == "" {
		return nil, "", nil
	}

	rawUser, err := os.ReadFile(filepath.Join(s.dir, userFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read user: %w", err)
	}

	var user User
	if err := json.Unmarshal(rawUser, &user); err != nil {
		return nil, "", nil
	}
	if err := s.validate.Struct(&user); err != nil {
		return nil, "", nil
	}
	if !user.Role.Valid() {
		return nil, "", nil
	}
	return &user, token, nil
}

// Clear removes both entries. Clearing an empty store is a no-op.
func (s *FileStore) Clear() error {
	for _, name := range []string{tokenFileName, userFileName} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// MemStore is an in-memory SessionStore for tests and ephemeral sessions.
type MemStore struct {
	mu    sync.Mutex
	user  *User
	token string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Save(user *User, token string) error {
	if user == nil || token == "" {
		return fmt.Errorf("user and token required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.user = &copied
	s.token = token
	return nil
}

func (s *MemStore) Load() (*User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.token == "" {
		return nil, "", nil
	}
	copied := *s.user
	return &copied, s.token, nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
	return nil
}

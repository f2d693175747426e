package client

import (
	"fmt"
	"sync"
)

// State is the session lifecycle state.
type State int

const (
	// StateInitializing means the persisted session has not been consulted
	// yet. Nothing should redirect while in this state.
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Controller owns the in-memory session and keeps it consistent with the
// persistent store. All transitions write the store before they become
// visible to readers, so a crash between the two never yields a session that
// exists in memory but not on disk.
type Controller struct {
	mu    sync.RWMutex
	store SessionStore
	state State
	user  *User
	token string
	epoch uint64
}

// NewController starts in Initializing; call Restore to settle the state.
func NewController(store SessionStore) *Controller {
	return &Controller{store: store, state: StateInitializing}
}

// Restore consults the store exactly once and transitions to Authenticated
// or Unauthenticated. Calling it again after the state has settled is a
// no-op returning the current state.
func (c *Controller) Restore() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInitializing {
		return c.state
	}

	user, token, err := c.store.Load()
	if err != nil || user == nil || token == "" {
		c.state = StateUnauthenticated
		return c.state
	}

	c.user = user
	c.token = token
	c.state = StateAuthenticated
	return c.state
}

// Login persists the session and then makes it visible. When the save fails
// the in-memory state is left untouched. Logging in while already
// authenticated overwrites the session; profile updates reuse this path.
func (c *Controller) Login(user *User, token string) error {
	if user == nil || user.ID == "" || user.Name == "" || user.Email == "" || !user.Role.Valid() {
		return fmt.Errorf("incomplete user")
	}
	if token == "" {
		return fmt.Errorf("token required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *user
	if err := c.store.Save(&copied, token); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	c.user = &copied
	c.token = token
	c.state = StateAuthenticated
	c.epoch++
	return nil
}

// Logout clears the store and then the in-memory session. It is idempotent
// and never performs network I/O.
func (c *Controller) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnauthenticated {
		return nil
	}

	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	c.user = nil
	c.token = ""
	c.state = StateUnauthenticated
	c.epoch++
	return nil
}

// Current returns a snapshot of the session without side effects.
func (c *Controller) Current() (State, *User) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return c.state, nil
	}
	copied := *c.user
	return c.state, &copied
}

// Token returns the current bearer token, empty when not authenticated.
func (c *Controller) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Epoch identifies the current session generation. It advances on every
// login and logout so responses issued under an earlier session can be
// recognised as stale.
func (c *Controller) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// StillCurrent reports whether the given epoch is still the live session.
func (c *Controller) StillCurrent(epoch uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch == epoch
}

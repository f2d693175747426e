package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
)

type mockProfileRepo struct {
	users    map[string]*models.User
	darkMode map[string]bool
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockProfileRepo) UpdateDarkMode(ctx context.Context, id string, darkMode bool) error {
	if m.darkMode == nil {
		m.darkMode = make(map[string]bool)
	}
	m.darkMode[id] = darkMode
	return nil
}

func (m *mockProfileRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, user := range m.users {
		if filter.ExcludeID != "" && user.ID == filter.ExcludeID {
			continue
		}
		out = append(out, *user)
	}
	return out, len(out), nil
}

type mockPresenceRepo struct {
	online map[string]bool
	err    error
}

func (m *mockPresenceRepo) SetOnline(ctx context.Context, userID string, online bool) error {
	if m.err != nil {
		return m.err
	}
	if m.online == nil {
		m.online = make(map[string]bool)
	}
	m.online[userID] = online
	return nil
}

func (m *mockPresenceRepo) Get(ctx context.Context, userID string) (models.Presence, error) {
	if m.err != nil {
		return models.Presence{}, m.err
	}
	return models.Presence{Online: m.online[userID]}, nil
}

func TestUserServiceUpdateProfileKeepsRole(t *testing.T) {
	repo := &mockProfileRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Name: "Ada", Email: "ada@example.com", Role: models.RoleStudent},
	}}
	service := NewUserService(repo, nil, nil, nil)

	updated, err := service.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{
		Name:     "Ada L.",
		Bio:      "curious",
		Location: "London",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)
	assert.Equal(t, "curious", updated.Bio)
	assert.Equal(t, models.RoleStudent, updated.Role)
	assert.Equal(t, "ada@example.com", updated.Email)
}

func TestUserServiceUpdateProfileValidation(t *testing.T) {
	service := NewUserService(&mockProfileRepo{}, nil, nil, nil)

	_, err := service.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{
		Name:    "Ada",
		Website: "not a url",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceProfileNotFound(t *testing.T) {
	service := NewUserService(&mockProfileRepo{}, nil, nil, nil)

	_, err := service.Profile(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceSetDarkMode(t *testing.T) {
	repo := &mockProfileRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Name: "Ada"},
	}}
	service := NewUserService(repo, nil, nil, nil)

	require.NoError(t, service.SetDarkMode(context.Background(), "u1", true))
	assert.True(t, repo.darkMode["u1"])
}

func TestUserServiceHeartbeatBestEffort(t *testing.T) {
	presence := &mockPresenceRepo{}
	service := NewUserService(&mockProfileRepo{}, presence, nil, nil)

	service.Heartbeat(context.Background(), "u1", true)
	assert.True(t, presence.online["u1"])

	// A presence backend failure must not surface to the caller.
	broken := NewUserService(&mockProfileRepo{}, &mockPresenceRepo{err: errors.New("redis down")}, nil, nil)
	broken.Heartbeat(context.Background(), "u1", true)

	// No presence backend at all is also fine.
	bare := NewUserService(&mockProfileRepo{}, nil, nil, nil)
	bare.Heartbeat(context.Background(), "u1", true)
}

func TestUserServiceListDecoratesPresence(t *testing.T) {
	repo := &mockProfileRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Name: "Ada", Role: models.RoleStudent},
		"u2": {ID: "u2", Name: "Grace", Role: models.RoleTeacher},
	}}
	presence := &mockPresenceRepo{online: map[string]bool{"u2": true}}
	service := NewUserService(repo, presence, nil, nil)

	summaries, pagination, err := service.List(context.Background(), models.UserFilter{ExcludeID: "u1"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Grace", summaries[0].Name)
	assert.True(t, summaries[0].Presence.Online)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
}

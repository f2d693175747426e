package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateDarkMode(ctx context.Context, id string, darkMode bool) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type presenceRepository interface {
	SetOnline(ctx context.Context, userID string, online bool) error
	Get(ctx context.Context, userID string) (models.Presence, error)
}

// UserService covers profile reads/updates and the chat partner listing.
type UserService struct {
	repo      profileRepository
	presence  presenceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo profileRepository, presence presenceRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, presence: presence, validator: validate, logger: logger}
}

// Profile returns the caller's own profile.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return user, nil
}

// UpdateProfile writes the owner-editable attributes. The role is never
// touched here; it is immutable after registration.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = req.Name
	user.Bio = req.Bio
	user.Phone = req.Phone
	user.Location = req.Location
	user.Website = req.Website
	user.AvatarURL = req.AvatarURL

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}

// SetDarkMode persists the dark-mode preference.
func (s *UserService) SetDarkMode(ctx context.Context, userID string, darkMode bool) error {
	if err := s.repo.UpdateDarkMode(ctx, userID, darkMode); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update dark mode")
	}
	return nil
}

// Heartbeat refreshes the caller's presence. Errors are logged, not
// surfaced: presence is best-effort and must not fail the client.
func (s *UserService) Heartbeat(ctx context.Context, userID string, online bool) {
	if s.presence == nil {
		return
	}
	if err := s.presence.SetOnline(ctx, userID, online); err != nil {
		s.logger.Warn("failed to refresh presence", zap.String("user_id", userID), zap.Error(err))
	}
}

// List returns users decorated with presence, for the chat partner picker.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.UserSummary, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summary := models.UserSummary{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			AvatarURL: u.AvatarURL,
		}
		if s.presence != nil {
			if presence, err := s.presence.Get(ctx, u.ID); err == nil {
				summary.Presence = presence
			} else {
				s.logger.Warn("failed to load presence", zap.String("user_id", u.ID), zap.Error(err))
			}
		}
		summaries = append(summaries, summary)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	return summaries, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

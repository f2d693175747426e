package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/models"
	"github.com/campusworks/campus/internal/service"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/response"
)

// UserHandler exposes directory and profile endpoints.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users for the chat partner picker, with presence attached
// @Tags Users
// @Produce json
// @Param excludeCurrentUser query bool false "Exclude the caller from results"
// @Param role query string false "Filter by role (STUDENT or TEACHER)"
// @Param search query string false "Substring match on name or email"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	filter := models.UserFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 0),
	}
	if queryBool(c, "excludeCurrentUser") {
		filter.ExcludeID = claims.UserID
	}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		if !role.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role filter"))
			return
		}
		filter.Role = &role
	}

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// Me godoc
// @Summary Get own profile
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /users/profile/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	user, err := h.service.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateProfile godoc
// @Summary Update own profile
// @Description Update editable profile attributes. The role never changes.
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// SetDarkMode godoc
// @Summary Persist dark-mode preference
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.DarkModeRequest true "Dark mode payload"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /users/dark-mode [put]
func (h *UserHandler) SetDarkMode(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	var req models.DarkModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dark mode payload"))
		return
	}

	if err := h.service.SetDarkMode(c.Request.Context(), claims.UserID, req.DarkMode); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// OnlineStatus godoc
// @Summary Refresh presence
// @Description Heartbeat marking the caller online or offline
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.OnlineStatusRequest true "Presence payload"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /users/online-status [post]
func (h *UserHandler) OnlineStatus(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	var req models.OnlineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid presence payload"))
		return
	}

	h.service.Heartbeat(c.Request.Context(), claims.UserID, req.Online)
	response.NoContent(c)
}

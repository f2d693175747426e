package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/models"
	"github.com/campusworks/campus/internal/service"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/response"
)

// DashboardHandler serves the role-specific landing summary.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Role-specific dashboard
// @Description Student or teacher landing summary, shaped by the caller's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	switch claims.Role {
	case models.RoleTeacher:
		summary, err := h.service.Teacher(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"role": claims.Role})
	case models.RoleStudent:
		summary, err := h.service.Student(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"role": claims.Role})
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "unknown role"))
	}
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/models"
	"github.com/campusworks/campus/internal/service"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/response"
)

// CourseHandler exposes the catalog and enrollment endpoints.
type CourseHandler struct {
	service *service.CourseService
	metrics *service.MetricsService
}

// NewCourseHandler creates a new handler.
func NewCourseHandler(svc *service.CourseService, metrics *service.MetricsService) *CourseHandler {
	return &CourseHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary Browse the course catalog
// @Description List courses with search, category and enrolled-only filters
// @Tags Courses
// @Produce json
// @Param search query string false "Substring match on title or instructor name"
// @Param category query string false "Exact category match"
// @Param enrolled query bool false "Only courses the caller is enrolled in"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	filter := models.CourseFilter{
		Search:       c.Query("search"),
		Category:     c.Query("category"),
		EnrolledOnly: queryBool(c, "enrolled"),
		ViewerID:     claims.UserID,
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "page_size", 0),
	}

	courses, total, cacheHit, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCacheLookup(cacheHit)

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: pageSize, TotalCount: total}
	source := "db"
	if cacheHit {
		source = "cache"
	}
	response.JSON(c, http.StatusOK, courses, pagination, map[string]interface{}{"source": source})
}

// Create godoc
// @Summary Create a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body models.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	var req models.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, course)
}

// Update godoc
// @Summary Update a course
// @Description Edit a catalog entry. Owning teacher only.
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.UpdateCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	var req models.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, course, nil)
}

// Enroll godoc
// @Summary Enroll in a course
// @Description Idempotent enrollment for the calling student
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enroll [post]
func (h *CourseHandler) Enroll(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	if err := h.service.Enroll(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Drop godoc
// @Summary Drop a course
// @Description Idempotent unenrollment for the calling student
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enroll [delete]
func (h *CourseHandler) Drop(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	if err := h.service.Drop(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Roster godoc
// @Summary List a course roster
// @Description Enrolled students of a course. Owning teacher only.
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/roster [get]
func (h *CourseHandler) Roster(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	roster, err := h.service.Roster(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, roster, nil)
}

package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/models"
	"github.com/campusworks/campus/internal/service"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/response"
)

// ExportHandler exposes the background roster-export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Enqueue godoc
// @Summary Start a roster export
// @Description Queue a PDF or CSV roster export for a course the caller teaches
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.RosterExportRequest false "Export options"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/roster/export [post]
func (h *ExportHandler) Enqueue(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	var req models.RosterExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
			return
		}
	}

	job, err := h.service.Enqueue(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, job)
}

// Status godoc
// @Summary Poll an export job
// @Description Job state, plus a signed download token once completed
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	job, link, err := h.service.Job(claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if link != nil {
		meta = map[string]interface{}{"download_token": link.Token, "expires_at": link.ExpiresAt}
	}
	response.JSON(c, http.StatusOK, job, nil, meta)
}

// Download godoc
// @Summary Download a finished export
// @Description Streams the rendered roster file for a valid signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	job, file, err := h.service.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "application/pdf"
	if job.Format == "csv" {
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="roster-%s.%s"`, job.CourseID, job.Format))
	c.DataFromReader(http.StatusOK, -1, contentType, file, nil)
}

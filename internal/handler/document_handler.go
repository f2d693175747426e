package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/models"
	"github.com/campusworks/campus/internal/service"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/response"
)

// DocumentHandler exposes course material upload and download endpoints.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload godoc
// @Summary Upload a course document
// @Description Multipart upload of course material. Owning teacher only.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	doc, err := h.service.Upload(
		c.Request.Context(),
		claims.UserID,
		c.Param("id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Description Documents of a course. Students must be enrolled; teachers
// without a course filter see their own uploads.
// @Tags Documents
// @Produce json
// @Param course_id query string false "Course ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	filter := models.DocumentFilter{
		CourseID: c.Query("course_id"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 0),
	}

	docs, total, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: pageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Link godoc
// @Summary Issue a signed download link
// @Description Short-lived token for downloading a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id}/link [get]
func (h *DocumentHandler) Link(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	link, err := h.service.Link(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a document
// @Description Streams the file referenced by a valid signed token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	doc, file, err := h.service.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MIMEType, file, nil)
}

// Delete godoc
// @Summary Delete a document
// @Description Remove a document and its stored file. Uploader only.
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/models"
	"github.com/campusworks/campus/internal/service"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/response"
)

// ChatHandler exposes the direct-message endpoints. Messages are fetched by
// polling; there is no push channel.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler creates a new handler.
func NewChatHandler(svc *service.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// OpenWith godoc
// @Summary Open a conversation with a user
// @Description Find or create the thread between the caller and the participant
// @Tags Chat
// @Produce json
// @Param participantId path string true "Other participant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /chat/with/{participantId} [get]
func (h *ChatHandler) OpenWith(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	conversation, err := h.service.OpenWith(c.Request.Context(), claims.UserID, c.Param("participantId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, conversation, nil)
}

// Messages godoc
// @Summary Poll messages in a conversation
// @Description Messages after the optional watermark, oldest first
// @Tags Chat
// @Produce json
// @Param id path string true "Conversation ID"
// @Param after query string false "RFC3339 watermark; only newer messages are returned"
// @Param limit query int false "Maximum number of messages"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /chat/{id}/messages [get]
func (h *ChatHandler) Messages(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	filter := models.MessageFilter{
		ConversationID: c.Param("id"),
		Limit:          queryInt(c, "limit", 0),
	}
	if raw := c.Query("after"); raw != "" {
		after, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "after must be an RFC3339 timestamp"))
			return
		}
		filter.After = after
	}

	messages, err := h.service.Messages(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, messages, nil)
}

// Send godoc
// @Summary Send a message
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body models.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /chat/message [post]
func (h *ChatHandler) Send(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	message, err := h.service.Send(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, message)
}

// Conversations godoc
// @Summary List conversations
// @Description The caller's threads with partner info and unread counts
// @Tags Chat
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /chat [get]
func (h *ChatHandler) Conversations(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return
	}

	conversations, err := h.service.Conversations(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, conversations, nil)
}

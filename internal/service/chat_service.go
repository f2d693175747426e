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

type chatRepository interface {
	FindConversation(ctx context.Context, userA, userB string) (*models.Conversation, error)
	FindConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	MarkRead(ctx context.Context, conversationID, readerID string) error
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

type chatUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ChatService implements direct messaging as plain request/response polling.
type ChatService struct {
	repo      chatRepository
	users     chatUserLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(repo chatRepository, users chatUserLookup, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ChatService{repo: repo, users: users, validator: validate, logger: logger}
}

// OpenWith finds or creates the conversation between the caller and the
// given participant.
func (s *ChatService) OpenWith(ctx context.Context, callerID, participantID string) (*models.Conversation, error) {
	if participantID == "" || participantID == callerID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid chat participant")
	}

	if _, err := s.users.FindByID(ctx, participantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chat participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}

	conv, err := s.repo.FindConversation(ctx, callerID, participantID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up conversation")
	}

	conv = &models.Conversation{ParticipantA: callerID, ParticipantB: participantID}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create conversation")
	}
	return conv, nil
}

// Messages returns the conversation history for a participant and marks the
// partner's messages as read. Non-participants get a 403, not an empty list.
func (s *ChatService) Messages(ctx context.Context, callerID string, filter models.MessageFilter) ([]models.Message, error) {
	conv, err := s.conversationFor(ctx, callerID, filter.ConversationID)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}

	if err := s.repo.MarkRead(ctx, conv.ID, callerID); err != nil {
		s.logger.Warn("failed to mark messages read", zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	return messages, nil
}

// Send posts a message into a conversation the caller participates in.
func (s *ChatService) Send(ctx context.Context, callerID string, req models.SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	if _, err := s.conversationFor(ctx, callerID, req.ConversationID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: req.ConversationID,
		SenderID:       callerID,
		Body:           req.Body,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	return msg, nil
}

// Conversations lists the caller's threads with unread counts.
func (s *ChatService) Conversations(ctx context.Context, callerID string) ([]models.ConversationSummary, error) {
	summaries, err := s.repo.ListConversations(ctx, callerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	return summaries, nil
}

func (s *ChatService) conversationFor(ctx context.Context, callerID, conversationID string) (*models.Conversation, error) {
	conv, err := s.repo.FindConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conversation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
	}
	if !conv.HasParticipant(callerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this conversation")
	}
	return conv, nil
}

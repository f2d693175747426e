package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusworks/campus/internal/models"
)

// ChatRepository handles persistence of conversations and messages.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository constructs the repository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// FindConversation returns the thread between two users regardless of the
// order the participants were stored in.
func (r *ChatRepository) FindConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	const query = `SELECT id, participant_a, participant_b, created_at FROM conversations
WHERE (participant_a = $1 AND participant_b = $2) OR (participant_a = $2 AND participant_b = $1)
LIMIT 1`
	var conv models.Conversation
	if err := r.db.GetContext(ctx, &conv, query, userA, userB); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &conv, nil
}

// FindConversationByID returns a conversation by identifier.
func (r *ChatRepository) FindConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	const query = `SELECT id, participant_a, participant_b, created_at FROM conversations WHERE id = $1`
	var conv models.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find conversation by id: %w", err)
	}
	return &conv, nil
}

// CreateConversation inserts a new two-party thread.
func (r *ChatRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO conversations (id, participant_a, participant_b, created_at)
VALUES (:id, :participant_a, :participant_b, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, conv); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// ListMessages returns messages in creation order, optionally only those
// after a polling watermark.
func (r *ChatRepository) ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.Message, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []models.Message
	if filter.After.IsZero() {
		query := fmt.Sprintf(`SELECT id, conversation_id, sender_id, body, created_at, read FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT %d`, limit)
		if err := r.db.SelectContext(ctx, &messages, query, filter.ConversationID); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		return messages, nil
	}

	query := fmt.Sprintf(`SELECT id, conversation_id, sender_id, body, created_at, read FROM messages WHERE conversation_id = $1 AND created_at > $2 ORDER BY created_at ASC LIMIT %d`, limit)
	if err := r.db.SelectContext(ctx, &messages, query, filter.ConversationID, filter.After); err != nil {
		return nil, fmt.Errorf("list messages after: %w", err)
	}
	return messages, nil
}

// CreateMessage appends a message to a conversation.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, conversation_id, sender_id, body, created_at, read)
VALUES (:id, :conversation_id, :sender_id, :body, :created_at, :read)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// MarkRead flags all partner messages in a conversation as read.
func (r *ChatRepository) MarkRead(ctx context.Context, conversationID, readerID string) error {
	const query = `UPDATE messages SET read = TRUE WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, conversationID, readerID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// CountUnread returns the number of unread messages addressed to the user.
func (r *ChatRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages m
JOIN conversations c ON c.id = m.conversation_id
WHERE (c.participant_a = $1 OR c.participant_b = $1) AND m.sender_id <> $1 AND m.read = FALSE`
	var total int
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return total, nil
}

// ListConversations returns the user's threads with partner info and unread counts.
func (r *ChatRepository) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	const query = `SELECT c.id, c.participant_a, c.participant_b, c.created_at,
        CASE WHEN c.participant_a = $1 THEN c.participant_b ELSE c.participant_a END AS partner_id,
        u.name AS partner_name,
        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read = FALSE) AS unread_count
FROM conversations c
JOIN users u ON u.id = CASE WHEN c.participant_a = $1 THEN c.participant_b ELSE c.participant_a END
WHERE c.participant_a = $1 OR c.participant_b = $1
ORDER BY c.created_at DESC`
	var summaries []models.ConversationSummary
	if err := r.db.SelectContext(ctx, &summaries, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return summaries, nil
}

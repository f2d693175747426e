package models

import "time"

// Conversation is a direct-message thread between exactly two users.
type Conversation struct {
	ID           string    `db:"id" json:"id"`
	ParticipantA string    `db:"participant_a" json:"participant_a"`
	ParticipantB string    `db:"participant_b" json:"participant_b"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Message is a single chat message. Clients poll for new messages; there is
// no push channel.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Body           string    `db:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Read           bool      `db:"read" json:"read"`
}

// SendMessageRequest posts a message into a conversation.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Body           string `json:"body" validate:"required,min=1,max=4000"`
}

// MessageFilter controls polling for messages within a conversation.
type MessageFilter struct {
	ConversationID string
	After          time.Time
	Limit          int
}

// ConversationSummary decorates a conversation with the other participant.
type ConversationSummary struct {
	Conversation
	PartnerID   string `db:"partner_id" json:"partner_id"`
	PartnerName string `db:"partner_name" json:"partner_name"`
	UnreadCount int    `db:"unread_count" json:"unread_count"`
}

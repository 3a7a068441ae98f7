package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeletedContent replaces the content of a soft-deleted message. The row is
// kept; reactions and receipts referencing it stay valid.
const DeletedContent = "[deleted]"

type Message struct {
	ID               uuid.UUID  `json:"id"`
	ConversationID   uuid.UUID  `json:"conversation_id"`
	SenderID         uuid.UUID  `json:"sender_id"`
	Content          string     `json:"content"`
	MediaURL         *string    `json:"media_url,omitempty"`
	ReplyToMessageID *uuid.UUID `json:"reply_to_message_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	EditedAt         *time.Time `json:"edited_at,omitempty"`
	IsDeleted        bool       `json:"is_deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// Reaction is unique per (MessageID, UserID, Emoji); presence means "reacted".
type Reaction struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReadReceipt is unique per (MessageID, UserID).
type ReadReceipt struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

// MessageAggregate is what mutating chat operations return and what the
// fan-out dispatcher broadcasts: the message plus its current reactions.
// Reaction counts are recomputed on read, never cached.
type MessageAggregate struct {
	Message   *Message       `json:"message"`
	Reactions []*Reaction    `json:"reactions,omitempty"`
	Counts    map[string]int `json:"reaction_counts,omitempty"`
}

// Conversation membership is owned by the out-of-scope CRUD surface; the core
// only reads it to resolve fan-out recipients.
type Conversation struct {
	ID        uuid.UUID   `json:"id"`
	Kind      string      `json:"kind"`
	MemberIDs []uuid.UUID `json:"member_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

const (
	ConversationKindDirect = "direct"
	ConversationKindGroup  = "group"
)

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social_rtc/internal/domain"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	Update(ctx context.Context, message *domain.Message) error
	List(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error)

	AddReaction(ctx context.Context, reaction *domain.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
	RemoveAllReactions(ctx context.Context, messageID, userID uuid.UUID) error
	GetReactions(ctx context.Context, messageID uuid.UUID) ([]*domain.Reaction, error)

	UpsertReadReceipt(ctx context.Context, receipt *domain.ReadReceipt) error
	LatestReadAt(ctx context.Context, conversationID, userID uuid.UUID) (*time.Time, error)
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID, after *time.Time) (int, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, media_url, reply_to_message_id, created_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`

	_, err := r.db.Exec(ctx, query,
		message.ID, message.ConversationID, message.SenderID, message.Content,
		message.MediaURL, message.ReplyToMessageID, message.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create message", "message_id", message.ID, "error", err)
		return err
	}

	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, media_url, reply_to_message_id,
		       created_at, edited_at, is_deleted, deleted_at
		FROM messages
		WHERE id = $1
	`

	message := &domain.Message{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&message.ID, &message.ConversationID, &message.SenderID, &message.Content,
		&message.MediaURL, &message.ReplyToMessageID, &message.CreatedAt,
		&message.EditedAt, &message.IsDeleted, &message.DeletedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get message by ID", "message_id", id, "error", err)
		return nil, err
	}

	return message, nil
}

func (r *messageRepository) Update(ctx context.Context, message *domain.Message) error {
	query := `
		UPDATE messages
		SET content = $2, edited_at = $3, is_deleted = $4, deleted_at = $5
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		message.ID, message.Content, message.EditedAt, message.IsDeleted, message.DeletedAt,
	)
	if err != nil {
		r.log.Error("Failed to update message", "message_id", message.ID, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMessageNotFound
	}

	return nil
}

func (r *messageRepository) List(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, media_url, reply_to_message_id,
		       created_at, edited_at, is_deleted, deleted_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list messages", "conversation_id", conversationID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		err := rows.Scan(
			&message.ID, &message.ConversationID, &message.SenderID, &message.Content,
			&message.MediaURL, &message.ReplyToMessageID, &message.CreatedAt,
			&message.EditedAt, &message.IsDeleted, &message.DeletedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

func (r *messageRepository) AddReaction(ctx context.Context, reaction *domain.Reaction) error {
	// ON CONFLICT DO NOTHING делает повторную реакцию no-op
	query := `
		INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		reaction.MessageID, reaction.UserID, reaction.Emoji, reaction.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to add reaction", "message_id", reaction.MessageID, "error", err)
		return err
	}

	return nil
}

func (r *messageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	query := `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`

	_, err := r.db.Exec(ctx, query, messageID, userID, emoji)
	if err != nil {
		r.log.Error("Failed to remove reaction", "message_id", messageID, "error", err)
		return err
	}

	return nil
}

func (r *messageRepository) RemoveAllReactions(ctx context.Context, messageID, userID uuid.UUID) error {
	query := `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2`

	_, err := r.db.Exec(ctx, query, messageID, userID)
	if err != nil {
		r.log.Error("Failed to remove reactions", "message_id", messageID, "user_id", userID, "error", err)
		return err
	}

	return nil
}

func (r *messageRepository) GetReactions(ctx context.Context, messageID uuid.UUID) ([]*domain.Reaction, error) {
	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		r.log.Error("Failed to get reactions", "message_id", messageID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var reactions []*domain.Reaction
	for rows.Next() {
		reaction := &domain.Reaction{}
		if err := rows.Scan(&reaction.MessageID, &reaction.UserID, &reaction.Emoji, &reaction.CreatedAt); err != nil {
			r.log.Error("Failed to scan reaction", "error", err)
			return nil, err
		}
		reactions = append(reactions, reaction)
	}

	return reactions, rows.Err()
}

func (r *messageRepository) UpsertReadReceipt(ctx context.Context, receipt *domain.ReadReceipt) error {
	query := `
		INSERT INTO read_receipts (message_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at
	`

	_, err := r.db.Exec(ctx, query, receipt.MessageID, receipt.UserID, receipt.ReadAt)
	if err != nil {
		r.log.Error("Failed to upsert read receipt", "message_id", receipt.MessageID, "error", err)
		return err
	}

	return nil
}

// LatestReadAt returns the created_at of the newest message in the
// conversation the user has a receipt for, nil when there is none.
func (r *messageRepository) LatestReadAt(ctx context.Context, conversationID, userID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT MAX(m.created_at)
		FROM read_receipts rr
		JOIN messages m ON m.id = rr.message_id
		WHERE m.conversation_id = $1 AND rr.user_id = $2
	`

	var readAt *time.Time
	err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(&readAt)
	if err != nil {
		r.log.Error("Failed to get latest read receipt", "conversation_id", conversationID, "error", err)
		return nil, err
	}

	return readAt, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, conversationID, userID uuid.UUID, after *time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND ($3::timestamptz IS NULL OR created_at > $3)
	`

	var count int
	err := r.db.QueryRow(ctx, query, conversationID, userID, after).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count unread", "conversation_id", conversationID, "error", err)
		return 0, err
	}

	return count, nil
}

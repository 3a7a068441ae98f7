package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social_rtc/internal/domain"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

// ConversationRepository is a read-only view: conversation CRUD belongs to
// the out-of-scope persistence surface, the core only resolves recipients.
type ConversationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT id, kind, created_at FROM conversations WHERE id = $1`

	conversation := &domain.Conversation{}
	err := r.db.QueryRow(ctx, query, id).Scan(&conversation.ID, &conversation.Kind, &conversation.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to get conversation", "conversation_id", id, "error", err)
		return nil, err
	}

	members, err := r.GetMemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	conversation.MemberIDs = members

	return conversation, nil
}

func (r *conversationRepository) GetMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM conversation_members WHERE conversation_id = $1`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		r.log.Error("Failed to get conversation members", "conversation_id", conversationID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			r.log.Error("Failed to scan member", "error", err)
			return nil, err
		}
		members = append(members, userID)
	}

	return members, rows.Err()
}

func (r *conversationRepository) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(&exists); err != nil {
		r.log.Error("Failed to check membership", "conversation_id", conversationID, "error", err)
		return false, err
	}

	return exists, nil
}

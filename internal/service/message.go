package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"social_rtc/internal/domain"
	"social_rtc/internal/repository"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

// MessageService owns message lifecycle, reactions, read receipts and unread
// counts. Every mutation returns the updated aggregate; broadcasting it is
// the caller's job, which keeps persistence and transport independently
// testable.
type MessageService interface {
	Send(ctx context.Context, conversationID, senderID uuid.UUID, content string, mediaURL *string, replyTo *uuid.UUID) (*domain.MessageAggregate, error)
	Edit(ctx context.Context, messageID, requesterID uuid.UUID, newContent string) (*domain.MessageAggregate, error)
	Delete(ctx context.Context, messageID, requesterID uuid.UUID) (*domain.MessageAggregate, error)
	React(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*domain.MessageAggregate, error)
	Unreact(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*domain.MessageAggregate, error)
	UnreactAll(ctx context.Context, messageID, userID uuid.UUID) (*domain.MessageAggregate, error)
	MarkRead(ctx context.Context, messageID, userID uuid.UUID) (*domain.ReadReceipt, error)
	MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ReadReceipt, error)
	UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
	List(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	log         logger.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, convRepo repository.ConversationRepository, log logger.Logger) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		log:         log,
	}
}

func (s *messageService) Send(ctx context.Context, conversationID, senderID uuid.UUID, content string, mediaURL *string, replyTo *uuid.UUID) (*domain.MessageAggregate, error) {
	content = strings.TrimSpace(content)
	if content == "" && (mediaURL == nil || *mediaURL == "") {
		return nil, apperrors.ErrEmptyContent
	}

	if _, err := s.convRepo.GetByID(ctx, conversationID); err != nil {
		return nil, err
	}

	if replyTo != nil {
		if _, err := s.messageRepo.GetByID(ctx, *replyTo); err != nil {
			return nil, err
		}
	}

	message := &domain.Message{
		ID:               uuid.New(),
		ConversationID:   conversationID,
		SenderID:         senderID,
		Content:          content,
		MediaURL:         mediaURL,
		ReplyToMessageID: replyTo,
		CreatedAt:        time.Now(),
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	s.log.Info("Message sent", "message_id", message.ID, "conversation_id", conversationID, "sender_id", senderID)

	return &domain.MessageAggregate{Message: message}, nil
}

func (s *messageService) Edit(ctx context.Context, messageID, requesterID uuid.UUID, newContent string) (*domain.MessageAggregate, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if message.SenderID != requesterID {
		return nil, apperrors.ErrForbidden
	}
	if message.IsDeleted {
		return nil, apperrors.ErrMessageDeleted
	}

	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, apperrors.ErrEmptyContent
	}

	now := time.Now()
	message.Content = newContent
	message.EditedAt = &now

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	s.log.Info("Message edited", "message_id", messageID)

	return s.aggregate(ctx, message)
}

func (s *messageService) Delete(ctx context.Context, messageID, requesterID uuid.UUID) (*domain.MessageAggregate, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if message.SenderID != requesterID {
		return nil, apperrors.ErrForbidden
	}
	if message.IsDeleted {
		return nil, apperrors.ErrMessageDeleted
	}

	// Soft delete: строка остаётся, контент замещается tombstone-маркером
	now := time.Now()
	message.IsDeleted = true
	message.DeletedAt = &now
	message.Content = domain.DeletedContent

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	s.log.Info("Message deleted", "message_id", messageID)

	return &domain.MessageAggregate{Message: message}, nil
}

func (s *messageService) React(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*domain.MessageAggregate, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, apperrors.ErrBadRequest
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	reaction := &domain.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now(),
	}

	// Повторная реакция тем же emoji — no-op success
	if err := s.messageRepo.AddReaction(ctx, reaction); err != nil {
		return nil, err
	}

	return s.aggregate(ctx, message)
}

func (s *messageService) Unreact(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*domain.MessageAggregate, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if err := s.messageRepo.RemoveReaction(ctx, messageID, userID, emoji); err != nil {
		return nil, err
	}

	return s.aggregate(ctx, message)
}

func (s *messageService) UnreactAll(ctx context.Context, messageID, userID uuid.UUID) (*domain.MessageAggregate, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if err := s.messageRepo.RemoveAllReactions(ctx, messageID, userID); err != nil {
		return nil, err
	}

	return s.aggregate(ctx, message)
}

func (s *messageService) MarkRead(ctx context.Context, messageID, userID uuid.UUID) (*domain.ReadReceipt, error) {
	if _, err := s.messageRepo.GetByID(ctx, messageID); err != nil {
		return nil, err
	}

	receipt := &domain.ReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    time.Now(),
	}

	if err := s.messageRepo.UpsertReadReceipt(ctx, receipt); err != nil {
		return nil, err
	}

	return receipt, nil
}

// MarkAllRead returns the receipt it wrote, nil for an empty conversation.
func (s *messageService) MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ReadReceipt, error) {
	// Квитанция на самое свежее сообщение покрывает всю беседу: unread
	// считается от created_at последней квитанции.
	messages, err := s.messageRepo.List(ctx, conversationID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	receipt := &domain.ReadReceipt{
		MessageID: messages[0].ID,
		UserID:    userID,
		ReadAt:    time.Now(),
	}

	if err := s.messageRepo.UpsertReadReceipt(ctx, receipt); err != nil {
		return nil, err
	}

	return receipt, nil
}

// UnreadCount is a pure query: messages newer than the user's latest receipt
// in the conversation, excluding the user's own.
func (s *messageService) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	lastRead, err := s.messageRepo.LatestReadAt(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}

	return s.messageRepo.CountUnread(ctx, conversationID, userID, lastRead)
}

func (s *messageService) List(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.messageRepo.List(ctx, conversationID, limit, offset)
}

// aggregate recomputes reaction counts on read to avoid drift.
func (s *messageService) aggregate(ctx context.Context, message *domain.Message) (*domain.MessageAggregate, error) {
	reactions, err := s.messageRepo.GetReactions(ctx, message.ID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(reactions))
	for _, reaction := range reactions {
		counts[reaction.Emoji]++
	}

	return &domain.MessageAggregate{
		Message:   message,
		Reactions: reactions,
		Counts:    counts,
	}, nil
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social_rtc/internal/broker"
	"social_rtc/internal/domain"
	"social_rtc/internal/middleware"
	"social_rtc/internal/repository"
	"social_rtc/internal/service"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

// MessageHandler glues the two halves of every chat mutation: first the
// durable write through MessageService, then fan-out of the returned
// aggregate. Delivery failures are logged via the report and never turn a
// committed write into an error response.
type MessageHandler struct {
	messageService service.MessageService
	dispatch       service.DispatchService
	convRepo       repository.ConversationRepository
	log            logger.Logger
}

func NewMessageHandler(messageService service.MessageService, dispatch service.DispatchService, convRepo repository.ConversationRepository, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		dispatch:       dispatch,
		convRepo:       convRepo,
		log:            log,
	}
}

type SendMessageRequest struct {
	Content          string     `json:"content"`
	MediaURL         *string    `json:"media_url,omitempty"`
	ReplyToMessageID *uuid.UUID `json:"reply_to_message_id,omitempty"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID := middleware.UserID(c)
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	aggregate, err := h.messageService.Send(c.Request.Context(), conversationID, userID, req.Content, req.MediaURL, req.ReplyToMessageID)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	h.fanOut(c.Request.Context(), domain.EventMessageSent, aggregate, userID)

	c.JSON(http.StatusCreated, aggregate)
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	userID := middleware.UserID(c)
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	aggregate, err := h.messageService.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	h.fanOut(c.Request.Context(), domain.EventMessageEdited, aggregate, userID)

	c.JSON(http.StatusOK, aggregate)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	userID := middleware.UserID(c)
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	aggregate, err := h.messageService.Delete(c.Request.Context(), messageID, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	h.fanOut(c.Request.Context(), domain.EventMessageDeleted, aggregate, userID)

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *MessageHandler) React(c *gin.Context) {
	h.react(c, h.messageService.React)
}

func (h *MessageHandler) Unreact(c *gin.Context) {
	h.react(c, h.messageService.Unreact)
}

func (h *MessageHandler) react(c *gin.Context, op func(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*domain.MessageAggregate, error)) {
	userID := middleware.UserID(c)
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	aggregate, err := op(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	h.fanOut(c.Request.Context(), domain.EventReaction, aggregate, userID)

	c.JSON(http.StatusOK, aggregate)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := middleware.UserID(c)
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	receipt, err := h.messageService.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	h.fanOutReceipt(c.Request.Context(), conversationID, receipt, userID)

	c.JSON(http.StatusOK, receipt)
}

func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	userID := middleware.UserID(c)
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	receipt, err := h.messageService.MarkAllRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	h.fanOutReceipt(c.Request.Context(), conversationID, receipt, userID)

	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID := middleware.UserID(c)
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	count, err := h.messageService.UnreadCount(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *MessageHandler) List(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	messages, err := h.messageService.List(c.Request.Context(), conversationID, 50, 0)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// fanOut pushes the committed aggregate to every other conversation member,
// with the conversation topic as the redundant path.
func (h *MessageHandler) fanOut(ctx context.Context, eventType string, aggregate *domain.MessageAggregate, actorID uuid.UUID) {
	conversationID := aggregate.Message.ConversationID

	members, err := h.convRepo.GetMemberIDs(ctx, conversationID)
	if err != nil {
		h.log.Warn("Failed to resolve recipients, fan-out skipped", "conversation_id", conversationID, "error", err)
		return
	}

	recipients := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		if member != actorID {
			recipients = append(recipients, member)
		}
	}

	// Один логический event получает один стабильный id; копия в
	// fallback-топике несёт тот же id, клиенты дедуплицируют по нему.
	event := &domain.Event{
		ID:      uuid.New(),
		Type:    eventType,
		Payload: aggregate,
	}

	report := h.dispatch.Deliver(ctx, recipients, event, broker.ConversationTopic(conversationID))
	if !report.AllDelivered() {
		h.log.Warn("Message fan-out incomplete", "message_id", aggregate.Message.ID, "failed", len(report.Failed))
	}
}

// fanOutReceipt broadcasts a read receipt to the other conversation members.
// Receipts flow through the same delivery path as message mutations; a nil
// receipt (empty conversation) is nothing to announce.
func (h *MessageHandler) fanOutReceipt(ctx context.Context, conversationID uuid.UUID, receipt *domain.ReadReceipt, actorID uuid.UUID) {
	if receipt == nil {
		return
	}

	members, err := h.convRepo.GetMemberIDs(ctx, conversationID)
	if err != nil {
		h.log.Warn("Failed to resolve recipients, fan-out skipped", "conversation_id", conversationID, "error", err)
		return
	}

	recipients := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		if member != actorID {
			recipients = append(recipients, member)
		}
	}

	event := &domain.Event{
		ID:      uuid.New(),
		Type:    domain.EventReadReceipt,
		Payload: receipt,
	}

	report := h.dispatch.Deliver(ctx, recipients, event, broker.ConversationTopic(conversationID))
	if !report.AllDelivered() {
		h.log.Warn("Read receipt fan-out incomplete", "message_id", receipt.MessageID, "failed", len(report.Failed))
	}
}

func messageIDParam(c *gin.Context) (uuid.UUID, bool) {
	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return uuid.Nil, false
	}
	return messageID, true
}

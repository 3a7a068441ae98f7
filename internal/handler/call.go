package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social_rtc/internal/middleware"
	"social_rtc/internal/service"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

// CallHandler is the HTTP face of the signaling relay. It deserializes,
// resolves the caller and hands off; all semantics live in the service.
type CallHandler struct {
	signaling service.SignalingService
	log       logger.Logger
}

func NewCallHandler(signaling service.SignalingService, log logger.Logger) *CallHandler {
	return &CallHandler{
		signaling: signaling,
		log:       log,
	}
}

type SignalRequest struct {
	To      uuid.UUID              `json:"to" binding:"required"`
	Payload map[string]interface{} `json:"payload" binding:"required"`
}

type BroadcastRequest struct {
	Payload map[string]interface{} `json:"payload" binding:"required"`
}

func (h *CallHandler) SendOffer(c *gin.Context) {
	h.relayDirect(c, h.signaling.SendOffer)
}

func (h *CallHandler) SendAnswer(c *gin.Context) {
	h.relayDirect(c, h.signaling.SendAnswer)
}

func (h *CallHandler) SendICECandidate(c *gin.Context) {
	h.relayDirect(c, h.signaling.SendICECandidate)
}

func (h *CallHandler) BroadcastAnswer(c *gin.Context) {
	h.relayBroadcast(c, h.signaling.BroadcastAnswer)
}

func (h *CallHandler) BroadcastICECandidate(c *gin.Context) {
	h.relayBroadcast(c, h.signaling.BroadcastICECandidate)
}

type InviteRequest struct {
	To       uuid.UUID `json:"to" binding:"required"`
	CallType string    `json:"call_type" binding:"required"`
}

func (h *CallHandler) Invite(c *gin.Context) {
	userID := middleware.UserID(c)
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.signaling.SendCallInvitation(c.Request.Context(), roomID, userID, req.To, req.CallType); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "invitation sent"})
}

type RespondRequest struct {
	To       uuid.UUID `json:"to" binding:"required"`
	Accepted *bool     `json:"accepted" binding:"required"`
}

func (h *CallHandler) Respond(c *gin.Context) {
	userID := middleware.UserID(c)
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.signaling.SendCallResponse(c.Request.Context(), roomID, userID, req.To, *req.Accepted); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "response sent"})
}

type ConnectionStateRequest struct {
	ConnectionState    string `json:"connection_state" binding:"required"`
	ICEConnectionState string `json:"ice_connection_state" binding:"required"`
}

func (h *CallHandler) UpdateConnectionState(c *gin.Context) {
	userID := middleware.UserID(c)
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var req ConnectionStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.signaling.UpdateCallSessionState(c.Request.Context(), roomID, userID, req.ConnectionState, req.ICEConnectionState); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "state updated"})
}

func (h *CallHandler) relayDirect(c *gin.Context, relay func(ctx context.Context, roomID, from, to uuid.UUID, payload map[string]interface{}) error) {
	userID := middleware.UserID(c)
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := relay(c.Request.Context(), roomID, userID, req.To, req.Payload); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sent"})
}

func (h *CallHandler) relayBroadcast(c *gin.Context, relay func(ctx context.Context, roomID, from uuid.UUID, payload map[string]interface{}) error) {
	userID := middleware.UserID(c)
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := relay(c.Request.Context(), roomID, userID, req.Payload); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sent"})
}

func roomIDParam(c *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return uuid.Nil, false
	}
	return roomID, true
}

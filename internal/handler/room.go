package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social_rtc/internal/middleware"
	"social_rtc/internal/service"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

type RoomHandler struct {
	roomService service.RoomService
	signaling   service.SignalingService
	log         logger.Logger
}

func NewRoomHandler(roomService service.RoomService, signaling service.SignalingService, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		signaling:   signaling,
		log:         log,
	}
}

type CreateRoomRequest struct {
	Kind            string      `json:"kind" binding:"required"`
	MaxParticipants int         `json:"max_participants"`
	MemberHint      []uuid.UUID `json:"member_hint,omitempty"`
}

func (h *RoomHandler) Create(c *gin.Context) {
	userID := middleware.UserID(c)

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), userID, req.Kind, req.MaxParticipants, req.MemberHint)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) GetByID(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	room, err := h.roomService.GetByID(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) History(c *gin.Context) {
	userID := middleware.UserID(c)

	rooms, err := h.roomService.History(c.Request.Context(), userID, 20, 0)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) Join(c *gin.Context) {
	userID := middleware.UserID(c)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	room, err := h.roomService.Join(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) Leave(c *gin.Context) {
	userID := middleware.UserID(c)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	if err := h.roomService.Leave(c.Request.Context(), roomID, userID); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left"})
}

func (h *RoomHandler) End(c *gin.Context) {
	userID := middleware.UserID(c)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	if err := h.roomService.End(c.Request.Context(), roomID, userID); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	// Завершение уже зафиксировано, неудачная рассылка только логируется
	if err := h.signaling.NotifyCallEnded(c.Request.Context(), roomID, userID); err != nil {
		h.log.Warn("Failed to notify call ended", "room_id", roomID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "ended"})
}

func (h *RoomHandler) CanJoin(c *gin.Context) {
	userID := middleware.UserID(c)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	ok, err := h.roomService.CanJoin(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"can_join": ok})
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"social_rtc/internal/broker"
	"social_rtc/internal/domain"
	"social_rtc/internal/middleware"
	"social_rtc/internal/service"
	"social_rtc/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: проверять origin по списку из конфига
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// WebSocketHandler is the push gateway: one connection per authenticated
// user, subscribed to the user's private channels plus any room or
// conversation topics the client asks for. Inbound frames carrying
// signaling kinds are routed into the relay; everything else flows outward.
type WebSocketHandler struct {
	signaling service.SignalingService
	broker    broker.Broker
	log       logger.Logger
}

func NewWebSocketHandler(signaling service.SignalingService, b broker.Broker, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		signaling: signaling,
		broker:    b,
		log:       log,
	}
}

// wsFrame is the inbound client frame.
type wsFrame struct {
	Type    string                 `json:"type"`
	RoomID  uuid.UUID              `json:"room_id,omitempty"`
	ConvID  uuid.UUID              `json:"conversation_id,omitempty"`
	To      uuid.UUID              `json:"to,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (h *WebSocketHandler) Handle(c *gin.Context) {
	userID := middleware.UserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "user_id", userID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := h.broker.Subscribe(ctx,
		broker.UserChannel(userID),
		broker.UserInviteChannel(userID),
		broker.UserErrorChannel(userID),
	)

	h.log.Info("WebSocket connected", "user_id", userID)

	go h.writePump(conn, sub)
	h.readPump(ctx, conn, sub, userID)

	cancel()
	sub.Close()
	conn.Close()
	h.log.Info("WebSocket disconnected", "user_id", userID)
}

func (h *WebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, sub broker.Subscription, userID uuid.UUID) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("WebSocket read failed", "user_id", userID, "error", err)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.log.Debug("Dropping malformed frame", "user_id", userID, "error", err)
			continue
		}

		h.route(ctx, sub, userID, &frame)
	}
}

// route dispatches one inbound frame. Relay errors are already pushed to the
// sender's error channel by the signaling service; nothing to do here.
func (h *WebSocketHandler) route(ctx context.Context, sub broker.Subscription, userID uuid.UUID, frame *wsFrame) {
	switch domain.SignalKind(frame.Type) {
	case domain.SignalOffer:
		_ = h.signaling.SendOffer(ctx, frame.RoomID, userID, frame.To, frame.Payload)
	case domain.SignalAnswer:
		if frame.To == uuid.Nil {
			_ = h.signaling.BroadcastAnswer(ctx, frame.RoomID, userID, frame.Payload)
		} else {
			_ = h.signaling.SendAnswer(ctx, frame.RoomID, userID, frame.To, frame.Payload)
		}
	case domain.SignalICECandidate:
		if frame.To == uuid.Nil {
			_ = h.signaling.BroadcastICECandidate(ctx, frame.RoomID, userID, frame.Payload)
		} else {
			_ = h.signaling.SendICECandidate(ctx, frame.RoomID, userID, frame.To, frame.Payload)
		}
	case domain.SignalBroadcast:
		messageType, _ := frame.Data["message_type"].(string)
		_ = h.signaling.BroadcastToRoom(ctx, frame.RoomID, userID, messageType, frame.Data)
	default:
		h.subscribeFrame(ctx, sub, userID, frame)
	}
}

func (h *WebSocketHandler) subscribeFrame(ctx context.Context, sub broker.Subscription, userID uuid.UUID, frame *wsFrame) {
	if frame.Type != "subscribe" {
		h.log.Debug("Dropping frame of unknown type", "user_id", userID, "type", frame.Type)
		return
	}

	var channels []string
	if frame.RoomID != uuid.Nil {
		channels = append(channels, broker.RoomTopic(frame.RoomID))
	}
	if frame.ConvID != uuid.Nil {
		channels = append(channels, broker.ConversationTopic(frame.ConvID))
	}
	if len(channels) == 0 {
		return
	}

	if err := sub.AddChannels(ctx, channels...); err != nil {
		h.log.Warn("Failed to add subscription", "user_id", userID, "error", err)
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, sub broker.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-sub.Messages():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

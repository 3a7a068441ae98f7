package handler

import (
	"social_rtc/internal/broker"
	"social_rtc/internal/config"
	"social_rtc/internal/repository"
	"social_rtc/internal/service"
	"social_rtc/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Room      *RoomHandler
	Call      *CallHandler
	Message   *MessageHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, repos *repository.Repositories, b broker.Broker, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Room:      NewRoomHandler(services.Room, services.Signaling, log),
		Call:      NewCallHandler(services.Signaling, log),
		Message:   NewMessageHandler(services.Message, services.Dispatch, repos.Conversation, log),
		WebSocket: NewWebSocketHandler(services.Signaling, b, log),
	}
}

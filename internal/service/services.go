package service

import (
	"social_rtc/internal/broker"
	"social_rtc/internal/config"
	"social_rtc/internal/repository"
	"social_rtc/pkg/logger"
)

type Services struct {
	Auth      AuthService
	Room      RoomService
	Signaling SignalingService
	Dispatch  DispatchService
	Message   MessageService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, b broker.Broker, cfg *config.Config, log logger.Logger) *Services {
	roomService := NewRoomService(repos.Room, repos.CallEvent, cfg, log)

	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		Room:      roomService,
		Signaling: NewSignalingService(roomService, repos.User, b, log),
		Dispatch:  NewDispatchService(b, cfg.Call.DeliveryTimeout, log),
		Message:   NewMessageService(repos.Message, repos.Conversation, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.RateLimit.Requests, cfg.RateLimit.Window, log),
	}
}

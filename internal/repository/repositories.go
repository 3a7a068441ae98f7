package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"social_rtc/pkg/logger"
)

type Repositories struct {
	User         UserRepository
	Room         RoomRepository
	Conversation ConversationRepository
	Message      MessageRepository
	CallEvent    CallEventRepository
	RateLimit    RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db, log),
		Room:         NewRoomRepository(db, log),
		Conversation: NewConversationRepository(db, log),
		Message:      NewMessageRepository(db, log),
		CallEvent:    NewCallEventRepository(db, log),
		RateLimit:    NewRateLimitRepository(redis, log),
	}
}

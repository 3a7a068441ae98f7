package broker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"social_rtc/pkg/logger"
)

// Broker is the addressable publish primitive every live feature funnels
// through. Publishing to a channel with no subscribers succeeds; an offline
// recipient is a silent drop, not an error. The interface exists so the
// redis backend can be swapped for another pub/sub without touching callers.
type Broker interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, payload interface{}) error
	PublishToTopic(ctx context.Context, topic string, payload interface{}) error
	// Subscribe is consumed by the websocket gateway; messages arrive as the
	// raw JSON published above.
	Subscribe(ctx context.Context, channels ...string) Subscription
}

// Subscription is a live pub/sub subscription. Close releases it.
type Subscription interface {
	Messages() <-chan []byte
	AddChannels(ctx context.Context, channels ...string) error
	Close() error
}

type redisBroker struct {
	rdb *redis.Client
	log logger.Logger
}

func NewRedisBroker(rdb *redis.Client, log logger.Logger) Broker {
	return &redisBroker{rdb: rdb, log: log}
}

func (b *redisBroker) PublishToUser(ctx context.Context, userID uuid.UUID, payload interface{}) error {
	return b.publish(ctx, UserChannel(userID), payload)
}

func (b *redisBroker) PublishToTopic(ctx context.Context, topic string, payload interface{}) error {
	return b.publish(ctx, topic, payload)
}

func (b *redisBroker) publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("Failed to marshal payload", "channel", channel, "error", err)
		return err
	}

	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		b.log.Error("Failed to publish", "channel", channel, "error", err)
		return err
	}

	return nil
}

func (b *redisBroker) Subscribe(ctx context.Context, channels ...string) Subscription {
	pubsub := b.rdb.Subscribe(ctx, channels...)
	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan []byte, 256),
	}
	go sub.pump()
	return sub
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan []byte
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.pubsub.Channel() {
		s.out <- []byte(msg.Payload)
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) AddChannels(ctx context.Context, channels ...string) error {
	return s.pubsub.Subscribe(ctx, channels...)
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

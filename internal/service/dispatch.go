package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"social_rtc/internal/broker"
	"social_rtc/internal/domain"
	"social_rtc/pkg/logger"
)

// DispatchService is the fan-out primitive shared by chat, group chat,
// notifications and signaling broadcasts: deliver one event to a set of
// recipients over their private channels, plus an optional redundant topic
// publish. A failed or slow recipient never blocks the others and never
// fails the triggering operation; outcomes land in the DeliveryReport.
type DispatchService interface {
	Deliver(ctx context.Context, recipients []uuid.UUID, event *domain.Event, fallbackTopic string) *domain.DeliveryReport
}

type dispatchService struct {
	broker  broker.Broker
	timeout time.Duration
	log     logger.Logger
}

func NewDispatchService(b broker.Broker, timeout time.Duration, log logger.Logger) DispatchService {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &dispatchService{broker: b, timeout: timeout, log: log}
}

func (s *dispatchService) Deliver(ctx context.Context, recipients []uuid.UUID, event *domain.Event, fallbackTopic string) *domain.DeliveryReport {
	report := &domain.DeliveryReport{
		Failed: make(map[uuid.UUID]string),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, userID := range recipients {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()

			attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			err := s.broker.PublishToUser(attemptCtx, userID, event)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[userID] = err.Error()
			} else {
				report.Delivered = append(report.Delivered, userID)
			}
		}(userID)
	}

	wg.Wait()

	// Резервный канал публикуется всегда, независимо от персональных
	// результатов; клиенты дедуплицируют по event.ID.
	if fallbackTopic != "" {
		fallbackCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if err := s.broker.PublishToTopic(fallbackCtx, fallbackTopic, event); err != nil {
			s.log.Warn("Fallback publish failed", "topic", fallbackTopic, "event_id", event.ID, "error", err)
		} else {
			report.FallbackPublished = true
		}
	}

	if len(report.Failed) > 0 {
		s.log.Warn("Delivery incomplete",
			"event_id", event.ID,
			"event_type", event.Type,
			"delivered", len(report.Delivered),
			"failed", len(report.Failed),
		)
	}

	return report
}

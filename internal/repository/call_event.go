package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"social_rtc/internal/domain"
	"social_rtc/pkg/logger"
)

// CallEventRepository is the call history log behind the analytics retention
// of rooms. Appends are best-effort and never fail the triggering operation.
type CallEventRepository interface {
	Append(ctx context.Context, event *domain.CallEvent) error
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.CallEvent, error)
}

type callEventRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewCallEventRepository(db *pgxpool.Pool, log logger.Logger) CallEventRepository {
	return &callEventRepository{db: db, log: log}
}

func (r *callEventRepository) Append(ctx context.Context, event *domain.CallEvent) error {
	query := `
		INSERT INTO call_events (event_time, room_id, user_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		event.EventTime, event.RoomID, event.UserID, event.EventType, event.Payload,
	)

	if err != nil {
		r.log.Error("Failed to append call event", "room_id", event.RoomID, "event_type", event.EventType, "error", err)
		return err
	}

	return nil
}

func (r *callEventRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.CallEvent, error) {
	query := `
		SELECT id, event_time, room_id, user_id, event_type, payload
		FROM call_events
		WHERE room_id = $1
		ORDER BY event_time ASC
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to list call events", "room_id", roomID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var events []*domain.CallEvent
	for rows.Next() {
		event := &domain.CallEvent{}
		err := rows.Scan(&event.ID, &event.EventTime, &event.RoomID, &event.UserID, &event.EventType, &event.Payload)
		if err != nil {
			r.log.Error("Failed to scan call event", "error", err)
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallEvent is one entry in the call history log. Rooms are retained for
// analytics; the event log records the lifecycle transitions behind them.
type CallEvent struct {
	ID        int64                  `json:"id"`
	EventTime time.Time              `json:"event_time"`
	RoomID    uuid.UUID              `json:"room_id"`
	UserID    *uuid.UUID             `json:"user_id,omitempty"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

const (
	EventTypeRoomCreated      = "room_created"
	EventTypeParticipantJoin  = "participant_joined"
	EventTypeParticipantLeave = "participant_left"
	EventTypeRoomEnded        = "room_ended"
)

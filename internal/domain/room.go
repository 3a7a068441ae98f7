package domain

import (
	"time"

	"github.com/google/uuid"
)

// Room is a call session container. One-to-one and group calls share the same
// lifecycle parameterized by Kind; rooms are never physically deleted and
// become read-only once ended.
type Room struct {
	ID              uuid.UUID      `json:"id"`
	Kind            string         `json:"kind"`
	CreatorID       uuid.UUID      `json:"creator_id"`
	Status          string         `json:"status"`
	MaxParticipants int            `json:"max_participants"`
	CreatedAt       time.Time      `json:"created_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
	Participants    []*Participant `json:"participants,omitempty"`
}

// Participant is one roster entry. A user who leaves and re-joins gets a
// fresh entry, so (RoomID, UserID) is unique only among active entries.
type Participant struct {
	ID                 uuid.UUID  `json:"id"`
	RoomID             uuid.UUID  `json:"room_id"`
	UserID             uuid.UUID  `json:"user_id"`
	JoinedAt           time.Time  `json:"joined_at"`
	LeftAt             *time.Time `json:"left_at,omitempty"`
	ConnectionState    string     `json:"connection_state"`
	ICEConnectionState string     `json:"ice_connection_state"`
}

const (
	RoomKindOneToOne = "one_to_one"
	RoomKindGroup    = "group"
)

const (
	RoomStatusCreated = "created"
	RoomStatusActive  = "active"
	RoomStatusEnded   = "ended"
)

const (
	ConnectionStateNew          = "new"
	ConnectionStateConnecting   = "connecting"
	ConnectionStateConnected    = "connected"
	ConnectionStateDisconnected = "disconnected"
	ConnectionStateFailed       = "failed"
	ConnectionStateClosed       = "closed"
)

// ActiveParticipants returns the roster entries without a LeftAt timestamp.
func (r *Room) ActiveParticipants() []*Participant {
	active := make([]*Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.LeftAt == nil {
			active = append(active, p)
		}
	}
	return active
}

// ActiveParticipant returns the open roster entry for userID, if any.
func (r *Room) ActiveParticipant(userID uuid.UUID) *Participant {
	for _, p := range r.Participants {
		if p.UserID == userID && p.LeftAt == nil {
			return p
		}
	}
	return nil
}

func (r *Room) IsEnded() bool {
	return r.Status == RoomStatusEnded
}

func (r *Room) IsFull() bool {
	return len(r.ActiveParticipants()) >= r.MaxParticipants
}

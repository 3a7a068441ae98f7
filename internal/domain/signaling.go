package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignalKind is the type of a signaling envelope. Values are part of the
// wire format consumed by clients.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice_candidate"
	SignalInvite       SignalKind = "invite"
	SignalResponse     SignalKind = "response"
	SignalEnd          SignalKind = "end"
	SignalBroadcast    SignalKind = "broadcast"
	SignalStateUpdate  SignalKind = "state_update"
	SignalError        SignalKind = "error"
)

const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// SignalingEnvelope is transient negotiation metadata. It is created and
// consumed within a single relay call and never persisted.
type SignalingEnvelope struct {
	RoomID     uuid.UUID              `json:"room_id"`
	FromUserID uuid.UUID              `json:"from_user_id"`
	ToUserID   *uuid.UUID             `json:"to_user_id,omitempty"`
	Kind       SignalKind             `json:"kind"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

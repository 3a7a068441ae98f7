package domain

import "github.com/google/uuid"

// DeliveryReport records per-recipient outcomes of one fan-out. A failed
// recipient never fails the triggering operation; the write is already
// durable by the time delivery starts.
type DeliveryReport struct {
	Delivered []uuid.UUID          `json:"delivered,omitempty"`
	Failed    map[uuid.UUID]string `json:"failed,omitempty"`
	// FallbackPublished is set when the redundant topic publish went out.
	FallbackPublished bool `json:"fallback_published"`
}

func (r *DeliveryReport) AllDelivered() bool {
	return len(r.Failed) == 0
}

// Event is the unit the broker carries. ID is stable so that clients can
// deduplicate the primary-channel and fallback-topic copies of one event.
type Event struct {
	ID      uuid.UUID   `json:"id"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	EventMessageSent    = "message.sent"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
	EventReaction       = "message.reaction"
	EventReadReceipt    = "message.read"
)

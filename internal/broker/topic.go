package broker

import (
	"fmt"

	"github.com/google/uuid"
)

// Channel name scheme. These functions are the only place that knows the
// wire-level key format; everything else addresses users and rooms by id.

// UserChannel is the private per-user delivery path.
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID)
}

// UserInviteChannel carries call invitations only.
func UserInviteChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:invites", userID)
}

// UserErrorChannel carries typed relay errors back to the sender.
func UserErrorChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:errors", userID)
}

// RoomTopic reaches every current subscriber of a call room.
func RoomTopic(roomID uuid.UUID) string {
	return fmt.Sprintf("room:%s", roomID)
}

// ConversationTopic reaches every current subscriber of a conversation.
func ConversationTopic(conversationID uuid.UUID) string {
	return fmt.Sprintf("conv:%s", conversationID)
}

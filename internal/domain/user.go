package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the profile slice the core needs for identity resolution.
// Accounts, credentials and profile editing are external collaborators.
type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

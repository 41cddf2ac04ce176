package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationKind classifies a notification event.
type NotificationKind string

const (
	NotifyPlaylistShared   NotificationKind = "playlist_shared"
	NotifyPlaylistUpdated  NotificationKind = "playlist_updated"
	NotifyPlaylistExported NotificationKind = "playlist_exported"
	NotifyFriendRequest    NotificationKind = "friend_request"
	NotifyFriendAccepted   NotificationKind = "friend_accepted"
)

// Notification is one persisted per-recipient record produced by the fan-out.
type Notification struct {
	ID          string           `json:"id" db:"id"`
	Sequence    int              `json:"-" db:"sequence"`
	Kind        NotificationKind `json:"kind" db:"kind"`
	ActorID     string           `json:"actorId" db:"actor_id"`
	RecipientID string           `json:"recipientId" db:"recipient_id"`
	Payload     json.RawMessage  `json:"payload" db:"payload"`
	Read        bool             `json:"read" db:"read"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"-" db:"updated_at"`
}

// Validate checks required notification fields.
func (n *Notification) Validate() error {
	if n.Kind == "" {
		return fmt.Errorf("notification kind is required")
	}
	if n.ActorID == "" {
		return fmt.Errorf("notification actor is required")
	}
	if n.RecipientID == "" {
		return fmt.Errorf("notification recipient is required")
	}
	return nil
}

// Event is the input to the notification fan-out: one event producing one
// Notification per affected user.
type Event struct {
	Kind            NotificationKind
	ActorUserID     string
	AffectedUserIDs []string
	Payload         any
}

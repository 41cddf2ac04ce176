// package notify implements the notification fan-out.
//
// One event produces one persisted notification per affected user, with the
// acting user excluded so nobody is notified about their own action. Failures
// are isolated per recipient: one bad write never blocks the rest.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// Store persists individual notification records.
type Store interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Fanout expands events into per-recipient notification records.
type Fanout struct {
	store  Store
	logger *log.Logger
}

// NewFanout creates a Fanout writing through store.
func NewFanout(store Store, logger *log.Logger) *Fanout {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Fanout{store: store, logger: logger}
}

// Publish writes one notification per affected user, skipping the actor and
// duplicate recipients. It returns the number of records created; when some
// writes fail the remaining recipients are still attempted and the failures
// come back joined.
func (f *Fanout) Publish(ctx context.Context, event models.Event) (int, error) {
	payload, err := shared.MarshalJSON(event.Payload, false)
	if err != nil {
		return 0, fmt.Errorf("failed to encode notification payload: %w", err)
	}

	seen := make(map[string]bool, len(event.AffectedUserIDs))
	created := 0
	var failures []error

	for _, recipient := range event.AffectedUserIDs {
		if recipient == "" || recipient == event.ActorUserID || seen[recipient] {
			continue
		}
		seen[recipient] = true

		notification := &models.Notification{
			Kind:        event.Kind,
			ActorID:     event.ActorUserID,
			RecipientID: recipient,
			Payload:     payload,
		}

		if err := f.store.Create(ctx, notification); err != nil {
			f.logger.Error("notification write failed", "kind", event.Kind, "recipient", recipient, "error", err)
			failures = append(failures, fmt.Errorf("recipient %s: %w", recipient, err))
			continue
		}
		created++
	}

	return created, errors.Join(failures...)
}

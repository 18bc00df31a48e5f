// Package events publishes domain change notifications (class and account
// mutations) to a message broker. Publishing is best-effort: a broker failure
// is logged and never fails the request that caused it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gradebook/apiserver/internal/logging"
)

const (
	UserRegistered = "user.registered"
	UserUpdated    = "user.updated"
	UserDeleted    = "user.deleted"
	ClassUpserted  = "class.upserted"
	ClassDeleted   = "class.deleted"
)

// Event describes one successful mutation.
type Event struct {
	Type     string    `json:"type"`
	UserID   string    `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	ItemID   *int      `json:"item_id,omitempty"`
	At       time.Time `json:"at"`
}

// ClassEvent builds an event about a class.
func ClassEvent(eventType string, itemID int, ownerID, owner string) Event {
	id := itemID
	return Event{Type: eventType, ItemID: &id, UserID: ownerID, Username: owner}
}

// UserEvent builds an event about an account.
func UserEvent(eventType, userID, username string) Event {
	return Event{Type: eventType, UserID: userID, Username: username}
}

// Bus publishes events to a channel on a backend. A Bus without a backend
// drops everything.
type Bus struct {
	backend Backend
	channel string
	log     logging.Logger
	now     func() time.Time
}

func NewBus(backend Backend, channel string, log logging.Logger) *Bus {
	return &Bus{
		backend: backend,
		channel: channel,
		log:     log.With("component", "events"),
		now:     time.Now,
	}
}

// NewNopBus returns a Bus that publishes nothing.
func NewNopBus() *Bus {
	return &Bus{log: logging.Discard(), now: time.Now}
}

// Enabled reports whether a backend is attached.
func (b *Bus) Enabled() bool {
	return b != nil && b.backend != nil
}

// Publish sends evt. Errors are logged.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if !b.Enabled() {
		return
	}
	if evt.At.IsZero() {
		evt.At = b.now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Warn(ctx, "encode event failed", "type", evt.Type, "err", err)
		return
	}
	id, err := b.backend.Publish(ctx, b.channel, data, map[string]string{"type": evt.Type})
	if err != nil {
		b.log.Warn(ctx, "publish event failed", "type", evt.Type, "err", err)
		return
	}
	b.log.Debug(ctx, "event published", "type", evt.Type, "id", id)
}

// Tail consumes the channel and hands each decoded event to fn until ctx is
// done. Undecodable messages are logged and acked.
func (b *Bus) Tail(ctx context.Context, fn func(Event)) error {
	if !b.Enabled() {
		return nil
	}
	return b.backend.Subscribe(ctx, b.channel, func(ctx context.Context, msg Message) error {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			b.log.Warn(ctx, "dropping undecodable event", "id", msg.ID, "err", err)
			return nil
		}
		fn(evt)
		return nil
	})
}

// Close closes the backend.
func (b *Bus) Close() error {
	if !b.Enabled() {
		return nil
	}
	return b.backend.Close()
}

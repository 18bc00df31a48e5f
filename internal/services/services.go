// Package services implements the account and class use-cases on top of the
// in-memory store, the session registry and the disk mirror.
package services

import (
	"context"
	"strings"

	"github.com/gradebook/apiserver/internal/events"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/internal/mirror"
	"github.com/gradebook/apiserver/internal/store"
	"github.com/gradebook/apiserver/types"
)

// Sessions issues and resolves bearer tokens.
type Sessions interface {
	Create(userID string) (string, error)
	Resolve(token string) (string, bool)
	RevokeAllFor(userID string) int
}

// Mirror persists users and classes.
type Mirror interface {
	SaveUser(ctx context.Context, user types.User) error
	RemoveUser(ctx context.Context, userID string) error
	SaveClass(ctx context.Context, ownerKey string, class types.Class) error
	RemoveClass(ctx context.Context, ownerKey string, itemID int) error
	LoadAll(ctx context.Context) (mirror.Snapshot, error)
}

// Publisher receives change events after successful mutations.
type Publisher interface {
	Publish(ctx context.Context, evt events.Event)
}

// Deps are the collaborators shared by both services.
type Deps struct {
	DB       *store.DB
	Sessions Sessions
	Mirror   Mirror
	Events   Publisher
	Policy   types.Policy
	Log      logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = events.NewNopBus()
	}
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	return d
}

// classKey places a class in the store according to the id scope.
func classKey(policy types.Policy, ownerID string, itemID int) store.ClassKey {
	if policy.ClassIDScope == types.ClassIDScopeOwner {
		return store.ClassKey{Scope: ownerID, ItemID: itemID}
	}
	return store.ClassKey{ItemID: itemID}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

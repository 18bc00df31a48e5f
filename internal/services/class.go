package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gradebook/apiserver/internal/apperror"
	"github.com/gradebook/apiserver/internal/events"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/internal/store"
	"github.com/gradebook/apiserver/types"
)

// ClassInput is the writable part of a class.
type ClassInput struct {
	Name     string
	Price    float64
	IsOffer  bool
	Partials []types.Partial
}

// ClassService owns classes and their partials and activities. Every
// operation is restricted to the class owner and admins.
type ClassService struct {
	db     *store.DB
	mirror Mirror
	events Publisher
	policy types.Policy
	log    logging.Logger
}

func NewClassService(deps Deps) *ClassService {
	deps = deps.withDefaults()
	return &ClassService{
		db:     deps.DB,
		mirror: deps.Mirror,
		events: deps.Events,
		policy: deps.Policy,
		log:    deps.Log.With("component", "classes"),
	}
}

func notFound(itemID int) error {
	return apperror.NewNotFoundError(fmt.Sprintf("class with id %d not found", itemID), nil)
}

// denied is returned when caller may not touch a class that exists.
func (s *ClassService) denied(itemID int, message string) error {
	if s.policy.HideForeignClasses {
		return notFound(itemID)
	}
	return apperror.NewForbiddenError(message, nil)
}

// find locates itemID for caller. With per-owner ids the caller's own class
// wins; admins fall back to the first owner holding that id. A nil caller
// (unauthenticated delete) always takes the fallback.
func (s *ClassService) find(tx *store.Tx, caller *types.User, itemID int) (store.ClassKey, types.Class, error) {
	if s.policy.ClassIDScope != types.ClassIDScopeOwner {
		key := classKey(s.policy, "", itemID)
		class, err := tx.Class(key)
		if err != nil {
			return key, types.Class{}, notFound(itemID)
		}
		return key, class, nil
	}

	if caller != nil {
		key := classKey(s.policy, caller.UserID, itemID)
		if class, err := tx.Class(key); err == nil {
			return key, class, nil
		}
		if !caller.IsAdmin {
			return key, types.Class{}, notFound(itemID)
		}
	}

	matches := tx.Classes(func(c types.Class) bool { return c.ItemID == itemID })
	if len(matches) == 0 {
		return store.ClassKey{}, types.Class{}, notFound(itemID)
	}
	class := matches[0]
	return classKey(s.policy, class.OwnerID, itemID), class, nil
}

func canAccess(caller types.User, class types.Class) bool {
	return caller.IsAdmin || class.OwnerID == caller.UserID
}

// List returns every class for admins and the caller's own classes otherwise.
func (s *ClassService) List(ctx context.Context, caller types.User) ([]types.Class, error) {
	var out []types.Class
	err := s.db.View(func(tx *store.Tx) error {
		if caller.IsAdmin {
			out = tx.Classes(nil)
			return nil
		}
		out = tx.Classes(func(c types.Class) bool { return c.OwnerID == caller.UserID })
		return nil
	})
	return out, err
}

func (s *ClassService) Get(ctx context.Context, caller types.User, itemID int) (types.Class, error) {
	var class types.Class
	err := s.db.View(func(tx *store.Tx) error {
		var err error
		_, class, err = s.find(tx, &caller, itemID)
		if err != nil {
			return err
		}
		if !canAccess(caller, class) {
			return s.denied(itemID, "not allowed to view this class")
		}
		return nil
	})
	if err != nil {
		return types.Class{}, err
	}
	return class, nil
}

// Upsert creates or overwrites the class itemID, owned by caller. Whether a
// class already held by someone else may be taken over depends on policy.
func (s *ClassService) Upsert(ctx context.Context, caller types.User, itemID int, in ClassInput) (types.Class, error) {
	if strings.TrimSpace(in.Name) == "" {
		return types.Class{}, apperror.NewValidationError("name must not be empty", nil)
	}

	class := types.Class{
		ItemID:   itemID,
		Name:     in.Name,
		Price:    in.Price,
		IsOffer:  in.IsOffer,
		Owner:    caller.Username,
		OwnerID:  caller.UserID,
		Partials: in.Partials,
	}
	if class.Partials == nil {
		class.Partials = []types.Partial{}
	}
	class = class.Clone()

	err := s.db.Update(func(tx *store.Tx) error {
		key := classKey(s.policy, caller.UserID, itemID)
		prev, err := tx.Class(key)
		exists := err == nil
		if exists && prev.OwnerID != caller.UserID && !caller.IsAdmin && s.policy.UpsertOwnership != types.UpsertReassign {
			return s.denied(itemID, "class already exists and belongs to another user")
		}

		if err := s.mirror.SaveClass(ctx, class.OwnerID, class); err != nil {
			return apperror.NewInternalError("persist class", err)
		}
		if exists && prev.OwnerID != class.OwnerID {
			if err := s.mirror.RemoveClass(ctx, prev.OwnerID, itemID); err != nil {
				s.log.Warn(ctx, "remove previous owner's copy failed", "item_id", itemID, "owner_id", prev.OwnerID, "err", err)
			}
		}
		tx.PutClass(key, class)
		return nil
	})
	if err != nil {
		return types.Class{}, err
	}

	s.publish(ctx, events.ClassUpserted, class)
	return class, nil
}

// Delete removes a class. caller may be nil when the policy lets
// unauthenticated callers delete.
func (s *ClassService) Delete(ctx context.Context, caller *types.User, itemID int) (types.Class, error) {
	if caller == nil && s.policy.DeleteRequiresAuth {
		return types.Class{}, apperror.NewAuthError("missing authorization header", nil)
	}

	var class types.Class
	err := s.db.Update(func(tx *store.Tx) error {
		key, found, err := s.find(tx, caller, itemID)
		if err != nil {
			return err
		}
		if caller != nil && !canAccess(*caller, found) {
			return s.denied(itemID, "only the owner or an admin can delete this class")
		}
		if err := tx.DeleteClass(key); err != nil {
			return notFound(itemID)
		}
		if err := s.mirror.RemoveClass(ctx, found.OwnerID, itemID); err != nil {
			s.log.Warn(ctx, "remove class dir failed", "item_id", itemID, "err", err)
		}
		class = found
		return nil
	})
	if err != nil {
		return types.Class{}, err
	}

	s.log.Info(ctx, "class deleted", "item_id", itemID, "owner", class.Owner)
	s.publish(ctx, events.ClassDeleted, class)
	return class, nil
}

// UpsertPartial merges p into the partial of the same name, or appends it.
func (s *ClassService) UpsertPartial(ctx context.Context, caller types.User, itemID int, p types.Partial) (types.Partial, error) {
	if strings.TrimSpace(p.Name) == "" {
		return types.Partial{}, apperror.NewValidationError("partial name is required", nil)
	}

	var out types.Partial
	_, err := s.mutate(ctx, caller, itemID, func(class *types.Class) error {
		if i := class.PartialIndex(p.Name); i >= 0 {
			class.Partials[i].Merge(p)
			out = class.Partials[i].Clone()
			return nil
		}
		added := p.Clone()
		if added.Activities == nil {
			added.Activities = []types.Activity{}
		}
		class.Partials = append(class.Partials, added)
		out = added.Clone()
		return nil
	})
	if err != nil {
		return types.Partial{}, err
	}
	return out, nil
}

// DeletePartial removes the first partial named name.
func (s *ClassService) DeletePartial(ctx context.Context, caller types.User, itemID int, name string) error {
	_, err := s.mutate(ctx, caller, itemID, func(class *types.Class) error {
		i := class.PartialIndex(name)
		if i < 0 {
			return partialNotFound(name)
		}
		class.Partials = append(class.Partials[:i], class.Partials[i+1:]...)
		return nil
	})
	return err
}

// AddActivity appends activity to the named partial. Its id is the number of
// activities the partial held before the append.
func (s *ClassService) AddActivity(ctx context.Context, caller types.User, itemID int, partialName string, activity types.Activity) (types.Activity, error) {
	var out types.Activity
	_, err := s.mutate(ctx, caller, itemID, func(class *types.Class) error {
		i := class.PartialIndex(partialName)
		if i < 0 {
			return partialNotFound(partialName)
		}
		partial := &class.Partials[i]
		added := activity.Clone()
		added.ID = len(partial.Activities)
		partial.Activities = append(partial.Activities, added)
		out = added.Clone()
		return nil
	})
	if err != nil {
		return types.Activity{}, err
	}
	return out, nil
}

// DeleteActivity removes the activity at position index. Remaining
// activities keep their ids.
func (s *ClassService) DeleteActivity(ctx context.Context, caller types.User, itemID int, partialName string, index int) error {
	_, err := s.mutate(ctx, caller, itemID, func(class *types.Class) error {
		i := class.PartialIndex(partialName)
		if i < 0 {
			return partialNotFound(partialName)
		}
		partial := &class.Partials[i]
		if index < 0 || index >= len(partial.Activities) {
			return apperror.NewNotFoundError(fmt.Sprintf("activity index %d out of range", index), nil)
		}
		partial.Activities = append(partial.Activities[:index], partial.Activities[index+1:]...)
		return nil
	})
	return err
}

func partialNotFound(name string) error {
	return apperror.NewNotFoundError(fmt.Sprintf("partial %q not found", name), nil)
}

// mutate runs fn on a copy of the class, then persists and stores it.
func (s *ClassService) mutate(ctx context.Context, caller types.User, itemID int, fn func(*types.Class) error) (types.Class, error) {
	var class types.Class
	err := s.db.Update(func(tx *store.Tx) error {
		key, found, err := s.find(tx, &caller, itemID)
		if err != nil {
			return err
		}
		if !canAccess(caller, found) {
			return s.denied(itemID, "not allowed to modify this class")
		}
		if err := fn(&found); err != nil {
			return err
		}
		if err := s.mirror.SaveClass(ctx, found.OwnerID, found); err != nil {
			return apperror.NewInternalError("persist class", err)
		}
		tx.PutClass(key, found)
		class = found
		return nil
	})
	if err != nil {
		return types.Class{}, err
	}
	s.publish(ctx, events.ClassUpserted, class)
	return class, nil
}

func (s *ClassService) publish(ctx context.Context, eventType string, class types.Class) {
	s.events.Publish(ctx, events.ClassEvent(eventType, class.ItemID, class.OwnerID, class.Owner))
}

// Package store holds the in-memory state of the service: users, their
// username and email indices, and classes. One mutex guards all of it so a
// read-modify-write sequence, including its disk writes, runs as a unit.
package store

import (
	"sort"
	"sync"

	"github.com/gradebook/apiserver/types"
)

// ClassKey identifies a class in memory. Scope is empty when item ids are
// global and holds the owner's user id when they are namespaced per owner.
type ClassKey struct {
	Scope  string
	ItemID int
}

// DB is the in-memory database.
type DB struct {
	mu         sync.RWMutex
	users      map[string]*types.User
	byUsername map[string]string
	byEmail    map[string]string
	classes    map[ClassKey]*types.Class
}

func New() *DB {
	db := &DB{}
	db.reset()
	return db
}

func (db *DB) reset() {
	db.users = make(map[string]*types.User)
	db.byUsername = make(map[string]string)
	db.byEmail = make(map[string]string)
	db.classes = make(map[ClassKey]*types.Class)
}

// Update runs fn with exclusive access.
func (db *DB) Update(fn func(tx *Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(&Tx{db: db})
}

// View runs fn with shared access. fn must not mutate.
func (db *DB) View(fn func(tx *Tx) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(&Tx{db: db})
}

// Tx exposes the maps to a function running under the DB lock. Records are
// copied on the way in and out.
type Tx struct {
	db *DB
}

// Reset drops every user and class.
func (tx *Tx) Reset() {
	tx.db.reset()
}

func (tx *Tx) User(userID string) (types.User, error) {
	u, ok := tx.db.users[userID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return *u, nil
}

func (tx *Tx) UserByUsername(username string) (types.User, error) {
	id, ok := tx.db.byUsername[username]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return tx.User(id)
}

func (tx *Tx) UserByEmail(email string) (types.User, error) {
	id, ok := tx.db.byEmail[email]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return tx.User(id)
}

// PutUser stores user and re-keys both indices if its username or email
// changed. Uniqueness is the caller's concern.
func (tx *Tx) PutUser(user types.User) {
	if prev, ok := tx.db.users[user.UserID]; ok {
		if prev.Username != user.Username {
			delete(tx.db.byUsername, prev.Username)
		}
		if prev.Email != user.Email {
			delete(tx.db.byEmail, prev.Email)
		}
	}
	stored := user
	tx.db.users[user.UserID] = &stored
	tx.db.byUsername[user.Username] = user.UserID
	tx.db.byEmail[user.Email] = user.UserID
}

// DeleteUser removes the user and its index entries.
func (tx *Tx) DeleteUser(userID string) error {
	u, ok := tx.db.users[userID]
	if !ok {
		return ErrNotFound
	}
	delete(tx.db.byUsername, u.Username)
	delete(tx.db.byEmail, u.Email)
	delete(tx.db.users, userID)
	return nil
}

// Users returns every user ordered by username.
func (tx *Tx) Users() []types.User {
	out := make([]types.User, 0, len(tx.db.users))
	for _, u := range tx.db.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (tx *Tx) Class(key ClassKey) (types.Class, error) {
	c, ok := tx.db.classes[key]
	if !ok {
		return types.Class{}, ErrNotFound
	}
	return c.Clone(), nil
}

func (tx *Tx) PutClass(key ClassKey, class types.Class) {
	stored := class.Clone()
	tx.db.classes[key] = &stored
}

func (tx *Tx) DeleteClass(key ClassKey) error {
	if _, ok := tx.db.classes[key]; !ok {
		return ErrNotFound
	}
	delete(tx.db.classes, key)
	return nil
}

// Classes returns the classes matching keep (all when keep is nil), ordered
// by item id then owner.
func (tx *Tx) Classes(keep func(types.Class) bool) []types.Class {
	out := make([]types.Class, 0, len(tx.db.classes))
	for _, c := range tx.db.classes {
		if keep == nil || keep(*c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].OwnerID < out[j].OwnerID
	})
	return out
}

// ClassKeys returns the keys of the classes owned by ownerID.
func (tx *Tx) ClassKeys(ownerID string) []ClassKey {
	var keys []ClassKey
	for key, c := range tx.db.classes {
		if c.OwnerID == ownerID {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ItemID < keys[j].ItemID })
	return keys
}

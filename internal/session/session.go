// Package session keeps opaque bearer tokens in memory. Sessions are a cache:
// they never expire and are lost on restart.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
)

const tokenBytes = 32

// Store maps bearer tokens to user ids.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]string)}
}

// Create registers a new random URL-safe token for userID.
func (s *Store) Create(userID string) (string, error) {
	var buf [tokenBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf[:])

	s.mu.Lock()
	s.sessions[token] = userID
	s.mu.Unlock()
	return token, nil
}

// Resolve returns the user id behind token. The token may still carry a
// leading "Bearer " scheme.
func (s *Store) Resolve(token string) (string, bool) {
	token = stripScheme(token)
	if token == "" {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.sessions[token]
	return userID, ok
}

// RevokeAllFor removes every session of userID and returns how many went.
func (s *Store) RevokeAllFor(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, owner := range s.sessions {
		if owner == userID {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Rebind moves every session of oldUserID to newUserID.
func (s *Store) Rebind(oldUserID, newUserID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, owner := range s.sessions {
		if owner == oldUserID {
			s.sessions[token] = newUserID
		}
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func stripScheme(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

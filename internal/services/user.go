package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gradebook/apiserver/internal/apperror"
	"github.com/gradebook/apiserver/internal/events"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/internal/password"
	"github.com/gradebook/apiserver/internal/store"
	"github.com/gradebook/apiserver/types"
)

const msgInvalidCredentials = "invalid credentials"

var verifyPassword = password.Verify

// decoyHash is checked when the identifier is unknown so a failed login costs
// the same key derivation either way.
var decoyHash = sync.OnceValue(func() string {
	h, _ := password.Hash("gradebook-decoy", "00000000000000000000000000000000")
	return h
})

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AuthResult is what register and login hand back to the client.
type AuthResult struct {
	Token string
	User  types.UserView
}

// UserService owns accounts: registration, login, profile changes and
// account deletion with its cascade.
type UserService struct {
	db       *store.DB
	sessions Sessions
	mirror   Mirror
	events   Publisher
	policy   types.Policy
	log      logging.Logger
	admins   map[string]struct{}
	newID    func() string
}

// NewUserService builds the service. Accounts registering with a username or
// email listed in adminUsers become admins.
func NewUserService(deps Deps, adminUsers []string) *UserService {
	deps = deps.withDefaults()
	admins := make(map[string]struct{}, len(adminUsers))
	for _, name := range adminUsers {
		if name = normalize(name); name != "" {
			admins[name] = struct{}{}
		}
	}
	return &UserService{
		db:       deps.DB,
		sessions: deps.Sessions,
		mirror:   deps.Mirror,
		events:   deps.Events,
		policy:   deps.Policy,
		log:      deps.Log.With("component", "users"),
		admins:   admins,
		newID:    uuid.NewString,
	}
}

func (s *UserService) isBootstrapAdmin(u types.User) bool {
	_, byName := s.admins[u.Username]
	_, byEmail := s.admins[u.Email]
	return byName || byEmail
}

// Register creates an account and opens a session for it.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	username := normalize(in.Username)
	email := normalize(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return AuthResult{}, apperror.NewValidationError("username, email and password are required", nil)
	}

	hash, err := password.Hash(in.Password, "")
	if err != nil {
		return AuthResult{}, apperror.NewInternalError("hash password", err)
	}

	var user types.User
	err = s.db.Update(func(tx *store.Tx) error {
		if _, err := tx.UserByUsername(username); err == nil {
			return apperror.NewConflictError("username already exists", nil)
		}
		if _, err := tx.UserByEmail(email); err == nil {
			return apperror.NewConflictError("email already registered", nil)
		}

		user = types.User{
			UserID:       s.newID(),
			Username:     username,
			Email:        email,
			PasswordHash: hash,
		}
		user.IsAdmin = s.isBootstrapAdmin(user)

		if err := s.mirror.SaveUser(ctx, user); err != nil {
			return apperror.NewInternalError("persist user", err)
		}
		tx.PutUser(user)
		return nil
	})
	if err != nil {
		return AuthResult{}, err
	}

	token, err := s.sessions.Create(user.UserID)
	if err != nil {
		return AuthResult{}, apperror.NewInternalError("create session", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.UserID, "username", user.Username, "is_admin", user.IsAdmin)
	s.events.Publish(ctx, events.UserEvent(events.UserRegistered, user.UserID, user.Username))
	return AuthResult{Token: token, User: user.View()}, nil
}

// Authenticate checks credentials and opens a session. Unknown identifiers
// and wrong passwords fail the same way.
func (s *UserService) Authenticate(ctx context.Context, identifier, plain string) (AuthResult, error) {
	key := normalize(identifier)
	if key == "" || plain == "" {
		return AuthResult{}, apperror.NewAuthError(msgInvalidCredentials, nil)
	}

	var (
		user  types.User
		found bool
	)
	_ = s.db.View(func(tx *store.Tx) error {
		if s.policy.LoginIdentifierMode != types.LoginEmailOnly {
			if u, err := tx.UserByUsername(key); err == nil {
				user, found = u, true
				return nil
			}
		}
		if u, err := tx.UserByEmail(key); err == nil {
			user, found = u, true
		}
		return nil
	})

	stored := user.PasswordHash
	if !found {
		stored = decoyHash()
	}
	if ok := verifyPassword(stored, plain); !found || !ok {
		s.log.Debug(ctx, "login rejected")
		return AuthResult{}, apperror.NewAuthError(msgInvalidCredentials, nil)
	}

	token, err := s.sessions.Create(user.UserID)
	if err != nil {
		return AuthResult{}, apperror.NewInternalError("create session", err)
	}
	return AuthResult{Token: token, User: user.View()}, nil
}

// Resolve maps a bearer token to the current user record.
func (s *UserService) Resolve(ctx context.Context, token string) (types.User, error) {
	userID, ok := s.sessions.Resolve(token)
	if !ok {
		return types.User{}, apperror.NewAuthError("invalid or expired token", nil)
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return types.User{}, apperror.NewAuthError("invalid or expired token", err)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (types.User, error) {
	var user types.User
	err := s.db.View(func(tx *store.Tx) error {
		var err error
		user, err = tx.User(userID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperror.NewNotFoundError("user not found", err)
	}
	return user, err
}

// Exists reports whether username is taken.
func (s *UserService) Exists(ctx context.Context, username string) bool {
	err := s.db.View(func(tx *store.Tx) error {
		_, err := tx.UserByUsername(normalize(username))
		return err
	})
	return err == nil
}

// Update applies the present fields of in to the account. A username change
// rewrites the owner of every class the account holds.
func (s *UserService) Update(ctx context.Context, userID string, in types.UserUpdate) (types.UserView, error) {
	var newHash string
	if in.Password != nil {
		if *in.Password == "" {
			return types.UserView{}, apperror.NewValidationError("password must not be empty", nil)
		}
		hash, err := password.Hash(*in.Password, "")
		if err != nil {
			return types.UserView{}, apperror.NewInternalError("hash password", err)
		}
		newHash = hash
	}

	var updated types.User
	err := s.db.Update(func(tx *store.Tx) error {
		current, err := tx.User(userID)
		if err != nil {
			return apperror.NewNotFoundError("user not found", err)
		}
		updated = current

		renamed := false
		if in.Username != nil {
			name := normalize(*in.Username)
			if name == "" {
				return apperror.NewValidationError("username must not be empty", nil)
			}
			if name != current.Username {
				if other, err := tx.UserByUsername(name); err == nil && other.UserID != current.UserID {
					return apperror.NewConflictError("new username already exists", nil)
				}
				updated.Username = name
				renamed = true
			}
		}
		if newHash != "" {
			updated.PasswordHash = newHash
		}
		if in.ProfileImage != nil {
			if img := *in.ProfileImage; img != "" {
				updated.ProfileImage = &img
			} else {
				updated.ProfileImage = nil
			}
		}

		if err := s.mirror.SaveUser(ctx, updated); err != nil {
			return apperror.NewInternalError("persist user", err)
		}
		tx.PutUser(updated)

		if renamed {
			s.renameOwner(ctx, tx, updated)
		}
		return nil
	})
	if err != nil {
		return types.UserView{}, err
	}

	s.log.Info(ctx, "user updated", "user_id", updated.UserID, "username", updated.Username)
	s.events.Publish(ctx, events.UserEvent(events.UserUpdated, updated.UserID, updated.Username))
	return updated.View(), nil
}

func (s *UserService) renameOwner(ctx context.Context, tx *store.Tx, owner types.User) {
	for _, key := range tx.ClassKeys(owner.UserID) {
		class, err := tx.Class(key)
		if err != nil {
			continue
		}
		class.Owner = owner.Username
		if err := s.mirror.SaveClass(ctx, class.OwnerID, class); err != nil {
			s.log.Warn(ctx, "rewrite class owner failed", "item_id", class.ItemID, "err", err)
		}
		tx.PutClass(key, class)
	}
}

// Delete removes the account, its classes and its sessions. Disk cleanup is
// best-effort.
func (s *UserService) Delete(ctx context.Context, userID string) (types.User, error) {
	var (
		user    types.User
		removed []types.Class
		revoked int
	)
	err := s.db.Update(func(tx *store.Tx) error {
		var err error
		user, err = tx.User(userID)
		if err != nil {
			return apperror.NewNotFoundError("user not found", err)
		}

		for _, key := range tx.ClassKeys(userID) {
			if class, err := tx.Class(key); err == nil {
				removed = append(removed, class)
			}
			_ = tx.DeleteClass(key)
		}
		revoked = s.sessions.RevokeAllFor(userID)
		if err := tx.DeleteUser(userID); err != nil {
			return err
		}

		if err := s.mirror.RemoveUser(ctx, userID); err != nil {
			s.log.Warn(ctx, "remove user dir failed", "user_id", userID, "err", err)
		}
		return nil
	})
	if err != nil {
		return types.User{}, err
	}

	s.log.Info(ctx, "user deleted", "user_id", userID, "username", user.Username, "classes", len(removed), "sessions", revoked)
	for _, class := range removed {
		s.events.Publish(ctx, events.ClassEvent(events.ClassDeleted, class.ItemID, class.OwnerID, class.Owner))
	}
	s.events.Publish(ctx, events.UserEvent(events.UserDeleted, userID, user.Username))
	return user, nil
}

// SetAdmin flips the admin flag of the account named username.
func (s *UserService) SetAdmin(ctx context.Context, username string, isAdmin bool) (types.User, error) {
	var user types.User
	err := s.db.Update(func(tx *store.Tx) error {
		var err error
		user, err = tx.UserByUsername(normalize(username))
		if err != nil {
			return apperror.NewNotFoundError(fmt.Sprintf("user %q not found", username), err)
		}
		user.IsAdmin = isAdmin
		if err := s.mirror.SaveUser(ctx, user); err != nil {
			return apperror.NewInternalError("persist user", err)
		}
		tx.PutUser(user)
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	s.events.Publish(ctx, events.UserEvent(events.UserUpdated, user.UserID, user.Username))
	return user, nil
}

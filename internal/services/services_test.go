package services

import (
	"context"
	"sync"
	"testing"

	"github.com/gradebook/apiserver/internal/events"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/internal/mirror"
	"github.com/gradebook/apiserver/internal/session"
	"github.com/gradebook/apiserver/internal/store"
	"github.com/gradebook/apiserver/types"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	db       *store.DB
	sessions *session.Store
	mirror   *mirror.Mirror
	events   *recorder
	users    *UserService
	classes  *ClassService
	deps     Deps
}

func newTestEnv(t *testing.T, policy types.Policy, admins ...string) *testEnv {
	t.Helper()
	m, err := mirror.New(t.TempDir(), logging.Discard())
	require.NoError(t, err)

	env := &testEnv{
		db:       store.New(),
		sessions: session.NewStore(),
		mirror:   m,
		events:   &recorder{},
	}
	env.deps = Deps{
		DB:       env.db,
		Sessions: env.sessions,
		Mirror:   env.mirror,
		Events:   env.events,
		Policy:   policy,
		Log:      logging.Discard(),
	}
	env.users = NewUserService(env.deps, admins)
	env.classes = NewClassService(env.deps)
	return env
}

// register creates an account named name with email name@x.com.
func (e *testEnv) register(t *testing.T, name string) (types.User, string) {
	t.Helper()
	res, err := e.users.Register(context.Background(), RegisterInput{
		Username: name,
		Email:    name + "@x.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	user, err := e.users.Get(context.Background(), res.User.UserID)
	require.NoError(t, err)
	return user, res.Token
}

func (e *testEnv) upsert(t *testing.T, caller types.User, itemID int, name string) types.Class {
	t.Helper()
	class, err := e.classes.Upsert(context.Background(), caller, itemID, ClassInput{Name: name})
	require.NoError(t, err)
	return class
}

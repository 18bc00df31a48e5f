package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gradebook/apiserver/internal/apperror"
	"github.com/gradebook/apiserver/internal/events"
	"github.com/gradebook/apiserver/internal/store"
	"github.com/gradebook/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRegisterIssuesResolvableToken(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	ctx := context.Background()

	res, err := env.users.Register(ctx, RegisterInput{Username: " Alice ", Email: "Alice@X.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, "alice@x.com", res.User.Email)
	assert.False(t, res.User.IsAdmin)
	assert.NotEmpty(t, res.User.UserID)

	user, err := env.users.Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.UserID, user.UserID)
	assert.NotEmpty(t, user.PasswordHash)

	assert.FileExists(t, filepath.Join(env.mirror.Root(), user.UserID, "user.json"))
	assert.Equal(t, []string{events.UserRegistered}, env.events.types())
	assert.True(t, env.users.Exists(ctx, "ALICE"))
	assert.False(t, env.users.Exists(ctx, "bob"))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	ctx := context.Background()
	env.register(t, "alice")

	_, err := env.users.Register(ctx, RegisterInput{Username: "ALICE", Email: "other@x.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, 400, apperror.From(err).StatusCode())

	_, err = env.users.Register(ctx, RegisterInput{Username: "alice2", Email: "ALICE@x.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))

	_, err = env.users.Register(ctx, RegisterInput{Username: "", Email: "a@x.com", Password: "secret1"})
	assert.True(t, apperror.IsValidation(err))
}

func TestRegisterBootstrapAdmin(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy(), "Root", "ops@x.com")

	root, _ := env.register(t, "root")
	ops, _ := env.register(t, "ops")
	alice, _ := env.register(t, "alice")

	assert.True(t, root.IsAdmin)
	assert.True(t, ops.IsAdmin)
	assert.False(t, alice.IsAdmin)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	ctx := context.Background()
	alice, _ := env.register(t, "alice")

	res, err := env.users.Authenticate(ctx, "Alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, res.User.UserID)

	res, err = env.users.Authenticate(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	resolved, err := env.users.Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, resolved.UserID)

	_, wrongPassword := env.users.Authenticate(ctx, "alice", "nope")
	_, unknownUser := env.users.Authenticate(ctx, "mallory", "secret1")
	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.True(t, apperror.IsAuth(wrongPassword))
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, "invalid credentials", apperror.From(unknownUser).Message)
}

func TestAuthenticateUnknownUserStillDerivesKey(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	ctx := context.Background()
	env.register(t, "alice")

	var checked []string
	orig := verifyPassword
	verifyPassword = func(stored, candidate string) bool {
		checked = append(checked, stored)
		return orig(stored, candidate)
	}
	t.Cleanup(func() { verifyPassword = orig })

	_, err := env.users.Authenticate(ctx, "mallory", "gradebook-decoy")
	require.Error(t, err)
	assert.True(t, apperror.IsAuth(err))
	require.Len(t, checked, 1)
	assert.Equal(t, decoyHash(), checked[0])

	_, err = env.users.Authenticate(ctx, "alice", "nope")
	require.Error(t, err)
	assert.Len(t, checked, 2)
}

func TestAuthenticateEmailOnly(t *testing.T) {
	policy := types.DefaultPolicy()
	policy.LoginIdentifierMode = types.LoginEmailOnly
	env := newTestEnv(t, policy)
	ctx := context.Background()
	env.register(t, "alice")

	_, err := env.users.Authenticate(ctx, "alice", "secret1")
	assert.True(t, apperror.IsAuth(err))

	_, err = env.users.Authenticate(ctx, "alice@x.com", "secret1")
	assert.NoError(t, err)
}

func TestResolveUnknownToken(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	_, err := env.users.Resolve(context.Background(), "nope")
	assert.True(t, apperror.IsAuth(err))
}

func TestUpdateRenameRewritesOwnedClasses(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	ctx := context.Background()
	alice, token := env.register(t, "alice")
	env.register(t, "bob")
	env.upsert(t, alice, 1, "Algebra")

	_, err := env.users.Update(ctx, alice.UserID, types.UserUpdate{Username: strPtr("BOB")})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))

	view, err := env.users.Update(ctx, alice.UserID, types.UserUpdate{Username: strPtr("Alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", view.Username)
	assert.Equal(t, alice.UserID, view.UserID)

	resolved, err := env.users.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alicia", resolved.Username)

	class, err := env.classes.Get(ctx, resolved, 1)
	require.NoError(t, err)
	assert.Equal(t, "alicia", class.Owner)

	snap, err := env.mirror.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Classes, 1)
	assert.Equal(t, "alicia", snap.Classes[0].Owner)

	assert.False(t, env.users.Exists(ctx, "alice"))
	assert.True(t, env.users.Exists(ctx, "alicia"))
	assert.Contains(t, env.events.types(), events.UserUpdated)
}

func TestUpdatePasswordAndProfileImage(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	ctx := context.Background()
	alice, _ := env.register(t, "alice")

	view, err := env.users.Update(ctx, alice.UserID, types.UserUpdate{
		Password:     strPtr("hunter22"),
		ProfileImage: strPtr("https://img.test/a.png"),
	})
	require.NoError(t, err)
	require.NotNil(t, view.ProfileImage)
	assert.Equal(t, "https://img.test/a.png", *view.ProfileImage)

	_, err = env.users.Authenticate(ctx, "alice", "secret1")
	assert.True(t, apperror.IsAuth(err))
	_, err = env.users.Authenticate(ctx, "alice", "hunter22")
	assert.NoError(t, err)

	view, err = env.users.Update(ctx, alice.UserID, types.UserUpdate{ProfileImage: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, view.ProfileImage)

	_, err = env.users.Update(ctx, alice.UserID, types.UserUpdate{Password: strPtr("")})
	assert.True(t, apperror.IsValidation(err))
}

func TestDeleteCascades(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy(), "root")
	ctx := context.Background()
	root, _ := env.register(t, "root")
	alice, aliceToken := env.register(t, "alice")
	bob, _ := env.register(t, "bob")
	env.upsert(t, alice, 1, "Algebra")
	env.upsert(t, alice, 2, "Geometry")
	env.upsert(t, bob, 3, "Biology")

	_, err := env.users.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)

	deleted, err := env.users.Delete(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, "alice", deleted.Username)

	all, err := env.classes.List(ctx, root)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].ItemID)

	_, err = env.users.Resolve(ctx, aliceToken)
	assert.True(t, apperror.IsAuth(err))
	assert.False(t, env.users.Exists(ctx, "alice"))

	_, err = os.Stat(filepath.Join(env.mirror.Root(), alice.UserID))
	assert.True(t, os.IsNotExist(err))

	got := env.events.types()
	assert.Equal(t, events.UserDeleted, got[len(got)-1])
	assert.Equal(t, 2, countOf(got, events.ClassDeleted))

	_, err = env.users.Delete(ctx, alice.UserID)
	assert.True(t, apperror.IsNotFound(err))

	// the email is free again
	_, err = env.users.Register(ctx, RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	assert.NoError(t, err)
}

func TestSetAdmin(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	ctx := context.Background()
	env.register(t, "alice")

	user, err := env.users.SetAdmin(ctx, "Alice", true)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	snap, err := env.mirror.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Users, 1)
	assert.True(t, snap.Users[0].IsAdmin)

	_, err = env.users.SetAdmin(ctx, "ghost", true)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRestoreRebuildsState(t *testing.T) {
	env := newTestEnv(t, types.DefaultPolicy())
	ctx := context.Background()
	alice, _ := env.register(t, "alice")
	env.register(t, "bob")
	env.upsert(t, alice, 1, "Algebra")
	_, err := env.classes.UpsertPartial(ctx, alice, 1, types.Partial{Name: "P1"})
	require.NoError(t, err)

	deps := env.deps
	deps.DB = store.New()
	users := NewUserService(deps, []string{"bob"})
	classes := NewClassService(deps)

	stats, err := users.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, RestoreStats{Users: 2, Classes: 1}, stats)

	res, err := users.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, res.User.UserID)

	restored, err := users.Get(ctx, alice.UserID)
	require.NoError(t, err)
	class, err := classes.Get(ctx, restored, 1)
	require.NoError(t, err)
	assert.Equal(t, "Algebra", class.Name)
	assert.Equal(t, "alice", class.Owner)
	require.Len(t, class.Partials, 1)
	assert.Equal(t, "P1", class.Partials[0].Name)

	bob, err := users.Authenticate(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.True(t, bob.User.IsAdmin)
}

func countOf(list []string, want string) int {
	n := 0
	for _, s := range list {
		if s == want {
			n++
		}
	}
	return n
}

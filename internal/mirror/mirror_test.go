package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T) *Mirror {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "data"), logging.Discard())
	require.NoError(t, err)
	return m
}

func sampleClass() types.Class {
	max := 100.0
	return types.Class{
		ItemID:  1,
		Name:    "Algebra",
		Price:   12.5,
		IsOffer: true,
		Owner:   "alice",
		OwnerID: "u-alice",
		Partials: []types.Partial{
			{
				Name: "Parcial 1",
				Max:  &max,
				Activities: []types.Activity{
					{ID: 0, Extra: map[string]any{"label": "A", "weight": 2.0}},
				},
				Extra: map[string]any{"evaluation_method": "promedio"},
			},
			{Name: "P2", Activities: []types.Activity{}},
		},
	}
}

func TestClassRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t)
	alice := types.User{UserID: "u-alice", Username: "alice", Email: "alice@x.com", PasswordHash: "s$h"}
	require.NoError(t, m.SaveUser(ctx, alice))

	class := sampleClass()
	require.NoError(t, m.SaveClass(ctx, "u-alice", class))

	snap, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, alice, snap.Users[0])
	require.Len(t, snap.Classes, 1)
	assert.Equal(t, class, snap.Classes[0])
}

func TestSaveClassWritesPartialFiles(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t)

	class := sampleClass()
	require.NoError(t, m.SaveClass(ctx, "u-alice", class))
	assert.ElementsMatch(t, []string{"Parcial_1.json", "P2.json"}, partialFiles(t, m, "u-alice", 1))

	class.Partials = class.Partials[1:]
	require.NoError(t, m.SaveClass(ctx, "u-alice", class))
	assert.Equal(t, []string{"P2.json"}, partialFiles(t, m, "u-alice", 1))
}

func TestPartialFilenameCollisions(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t)

	class := types.Class{ItemID: 5, Name: "X", Partials: []types.Partial{{Name: "a/b"}, {Name: "a b"}}}
	require.NoError(t, m.SaveClass(ctx, "u-1", class))

	assert.ElementsMatch(t, []string{"a_b.json", "a_b-2.json"}, partialFiles(t, m, "u-1", 5))
}

func TestRemoveClass(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t)

	require.NoError(t, m.SaveClass(ctx, "u-alice", sampleClass()))
	require.NoError(t, m.RemoveClass(ctx, "u-alice", 1))
	require.NoError(t, m.RemoveClass(ctx, "u-alice", 1))

	_, err := os.Stat(filepath.Join(m.Root(), "u-alice", "1"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveUser(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t)

	require.NoError(t, m.SaveUser(ctx, types.User{UserID: "u-1", Username: "alice"}))
	require.NoError(t, m.SaveClass(ctx, "u-1", sampleClass()))
	require.NoError(t, m.RemoveUser(ctx, "u-1"))

	snap, err := m.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Users)
	assert.Empty(t, snap.Classes)
}

func TestLoadAllSkipsCorruptDocuments(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t)

	require.NoError(t, m.SaveUser(ctx, types.User{UserID: "u-1", Username: "alice"}))
	require.NoError(t, m.SaveClass(ctx, "u-1", sampleClass()))

	badUser := filepath.Join(m.Root(), "u-2")
	require.NoError(t, os.MkdirAll(filepath.Join(badUser, "7"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badUser, userDocName), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(badUser, "7", classDocName), []byte("[]"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(badUser, "notanumber"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(m.Root(), "stray.txt"), []byte("x"), 0o600))

	snap, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "alice", snap.Users[0].Username)
	require.Len(t, snap.Classes, 1)
	assert.Equal(t, 1, snap.Classes[0].ItemID)
}

func TestLoadAllFallsBackToDirectoryValues(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t)

	dir := filepath.Join(m.Root(), "u-9", "42")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, classDocName), []byte(`{"owner":"zed"}`), 0o600))

	snap, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Classes, 1)
	c := snap.Classes[0]
	assert.Equal(t, 42, c.ItemID)
	assert.Equal(t, "u-9", c.OwnerID)
	assert.Equal(t, "zed", c.Owner)
	assert.Equal(t, "Untitled", c.Name)
	assert.NotNil(t, c.Partials)
}

func TestLoadAllPrefersCurrentUsername(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t)

	require.NoError(t, m.SaveUser(ctx, types.User{UserID: "u-1", Username: "alicia"}))
	class := sampleClass()
	class.Owner = "alice"
	require.NoError(t, m.SaveClass(ctx, "u-1", class))

	snap, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Classes, 1)
	assert.Equal(t, "alicia", snap.Classes[0].Owner)
}

func TestPartialFilename(t *testing.T) {
	assert.Equal(t, "Parcial_1.json", PartialFilename("Parcial 1"))
	assert.Equal(t, "partial.json", PartialFilename("  ///  "))
	assert.Equal(t, "Ex_men.json", PartialFilename("Exámen"))
	assert.Equal(t, "a-b_c.json", PartialFilename("a-b_c"))
}

func partialFiles(t *testing.T, m *Mirror, ownerKey string, itemID int) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(m.classDir(ownerKey, itemID), partialsDir))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

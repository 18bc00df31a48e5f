package store

import (
	"testing"

	"github.com/gradebook/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutUserIndexes(t *testing.T) {
	db := New()

	require.NoError(t, db.Update(func(tx *Tx) error {
		tx.PutUser(types.User{UserID: "1", Username: "alice", Email: "alice@x.com"})
		return nil
	}))

	require.NoError(t, db.View(func(tx *Tx) error {
		u, err := tx.UserByUsername("alice")
		require.NoError(t, err)
		assert.Equal(t, "1", u.UserID)

		u, err = tx.UserByEmail("alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, "1", u.UserID)
		return nil
	}))
}

func TestPutUserRekeysUsername(t *testing.T) {
	db := New()

	_ = db.Update(func(tx *Tx) error {
		tx.PutUser(types.User{UserID: "1", Username: "alice", Email: "alice@x.com"})
		tx.PutUser(types.User{UserID: "1", Username: "alicia", Email: "alice@x.com"})
		return nil
	})

	_ = db.View(func(tx *Tx) error {
		_, err := tx.UserByUsername("alice")
		assert.ErrorIs(t, err, ErrNotFound)
		u, err := tx.UserByUsername("alicia")
		require.NoError(t, err)
		assert.Equal(t, "1", u.UserID)
		return nil
	})
}

func TestDeleteUser(t *testing.T) {
	db := New()

	_ = db.Update(func(tx *Tx) error {
		tx.PutUser(types.User{UserID: "1", Username: "alice", Email: "alice@x.com"})
		require.NoError(t, tx.DeleteUser("1"))
		assert.ErrorIs(t, tx.DeleteUser("1"), ErrNotFound)

		_, err := tx.UserByEmail("alice@x.com")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, tx.Users())
		return nil
	})
}

func TestClassesAreCopied(t *testing.T) {
	db := New()
	key := ClassKey{ItemID: 1}

	_ = db.Update(func(tx *Tx) error {
		tx.PutClass(key, types.Class{ItemID: 1, Name: "Algebra", OwnerID: "1",
			Partials: []types.Partial{{Name: "P1"}}})
		return nil
	})

	_ = db.View(func(tx *Tx) error {
		c, err := tx.Class(key)
		require.NoError(t, err)
		c.Partials[0].Name = "changed"

		again, _ := tx.Class(key)
		assert.Equal(t, "P1", again.Partials[0].Name)
		return nil
	})
}

func TestClassesFilterAndOrder(t *testing.T) {
	db := New()

	_ = db.Update(func(tx *Tx) error {
		tx.PutClass(ClassKey{ItemID: 3}, types.Class{ItemID: 3, OwnerID: "a"})
		tx.PutClass(ClassKey{ItemID: 1}, types.Class{ItemID: 1, OwnerID: "b"})
		tx.PutClass(ClassKey{ItemID: 2}, types.Class{ItemID: 2, OwnerID: "a"})
		return nil
	})

	_ = db.View(func(tx *Tx) error {
		all := tx.Classes(nil)
		require.Len(t, all, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{all[0].ItemID, all[1].ItemID, all[2].ItemID})

		mine := tx.Classes(func(c types.Class) bool { return c.OwnerID == "a" })
		assert.Len(t, mine, 2)

		assert.Equal(t, []ClassKey{{ItemID: 2}, {ItemID: 3}}, tx.ClassKeys("a"))
		return nil
	})
}

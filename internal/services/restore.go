package services

import (
	"context"
	"fmt"

	"github.com/gradebook/apiserver/internal/store"
)

type RestoreStats struct {
	Users   int
	Classes int
	Skipped int
}

// Restore replaces the in-memory state with what the mirror holds on disk.
// Duplicates that would break index uniqueness are skipped with a warning,
// and accounts listed as bootstrap admins are promoted.
func (s *UserService) Restore(ctx context.Context) (RestoreStats, error) {
	snap, err := s.mirror.LoadAll(ctx)
	if err != nil {
		return RestoreStats{}, fmt.Errorf("load mirror: %w", err)
	}

	var stats RestoreStats
	err = s.db.Update(func(tx *store.Tx) error {
		tx.Reset()

		for _, user := range snap.Users {
			if _, err := tx.UserByUsername(user.Username); err == nil {
				s.log.Warn(ctx, "skipping user with duplicate username", "user_id", user.UserID, "username", user.Username)
				stats.Skipped++
				continue
			}
			if _, err := tx.UserByEmail(user.Email); err == nil {
				s.log.Warn(ctx, "skipping user with duplicate email", "user_id", user.UserID, "email", user.Email)
				stats.Skipped++
				continue
			}
			if !user.IsAdmin && s.isBootstrapAdmin(user) {
				user.IsAdmin = true
				if err := s.mirror.SaveUser(ctx, user); err != nil {
					s.log.Warn(ctx, "persist admin promotion failed", "user_id", user.UserID, "err", err)
				}
			}
			tx.PutUser(user)
			stats.Users++
		}

		for _, class := range snap.Classes {
			key := classKey(s.policy, class.OwnerID, class.ItemID)
			if _, err := tx.Class(key); err == nil {
				s.log.Warn(ctx, "skipping class with duplicate item id", "item_id", class.ItemID, "owner_id", class.OwnerID)
				stats.Skipped++
				continue
			}
			tx.PutClass(key, class)
			stats.Classes++
		}
		return nil
	})
	if err != nil {
		return RestoreStats{}, err
	}

	s.log.Info(ctx, "state restored", "users", stats.Users, "classes", stats.Classes, "skipped", stats.Skipped)
	return stats, nil
}

package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"trustline/internal/moderation"
)

// DirectoryStore provides persistent storage for user-directory records.
// The engine only reads and writes the fields it needs: role, active, and
// blocked flags. The platform's full user schema lives elsewhere.
type DirectoryStore struct {
	db *bolt.DB
}

var _ moderation.UserDirectory = (*DirectoryStore)(nil)

// SaveUser creates or replaces a user record. Used by host wiring and tests
// to seed the directory.
func (s *DirectoryStore) SaveUser(ctx context.Context, user moderation.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketUsers)
		}

		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		return bucket.Put([]byte(user.ID), data)
	})
}

// FindByID retrieves a user by id.
func (s *DirectoryStore) FindByID(ctx context.Context, id string) (*moderation.User, error) {
	var user *moderation.User

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		user = &moderation.User{}
		return json.Unmarshal(data, user)
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", id, moderation.ErrNotFound)
	}

	return user, nil
}

// FindByEmail retrieves a user by email address.
func (s *DirectoryStore) FindByEmail(ctx context.Context, email string) (*moderation.User, error) {
	var user *moderation.User

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			if user != nil {
				return nil
			}
			var u moderation.User
			if err := json.Unmarshal(v, &u); err != nil {
				return nil // Skip malformed entries
			}
			if u.Email == email {
				user = &u
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user with email %s: %w", email, moderation.ErrNotFound)
	}

	return user, nil
}

// SetBlocked flips the user's blocked flag.
func (s *DirectoryStore) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return s.updateUser(id, func(u *moderation.User) {
		u.IsBlocked = blocked
	})
}

// SetActive flips the user's active flag.
func (s *DirectoryStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.updateUser(id, func(u *moderation.User) {
		u.IsActive = active
	})
}

// SetRole replaces the user's stored role.
func (s *DirectoryStore) SetRole(ctx context.Context, id string, role moderation.Role) error {
	return s.updateUser(id, func(u *moderation.User) {
		u.Role = role
	})
}

func (s *DirectoryStore) updateUser(id string, apply func(*moderation.User)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketUsers)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketUsers)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user %s: %w", id, moderation.ErrNotFound)
		}

		var user moderation.User
		if err := json.Unmarshal(data, &user); err != nil {
			return err
		}

		apply(&user)

		newData, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), newData)
	})
}

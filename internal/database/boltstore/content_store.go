package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"trustline/internal/moderation"
	"trustline/internal/recovery"
)

// ContentItem is the envelope a content collaborator keeps per record.
// Data is the platform entity itself, opaque to the engine.
type ContentItem struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Deleted   bool            `json:"deleted"`
	DeletedBy string          `json:"deleted_by,omitempty"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ContentStore is a bolt-backed content collaborator for one collection
// (projects, comments, or chats). It satisfies both the engine's content
// contract and the recovery store's reinsertion contract.
type ContentStore struct {
	db     *bolt.DB
	bucket []byte
}

var (
	_ moderation.ContentStore = (*ContentStore)(nil)
	_ recovery.Reinserter     = (*ContentStore)(nil)
)

// Put creates or replaces a content item.
func (s *ContentStore) Put(ctx context.Context, item ContentItem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", s.bucket)
		}

		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal content item: %w", err)
		}

		return bucket.Put([]byte(item.ID), data)
	})
}

// FindByID returns the full stored entity as an opaque snapshot blob.
// Records already marked deleted are not findable.
func (s *ContentStore) FindByID(ctx context.Context, id string) ([]byte, error) {
	var snapshot []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		var item ContentItem
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		if item.Deleted {
			return nil
		}

		snapshot = make([]byte, len(data))
		copy(snapshot, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("content %s: %w", id, moderation.ErrNotFound)
	}

	return snapshot, nil
}

// MarkDeleted flags the record deleted without discarding it; the
// recoverable snapshot lives in the recovery store.
func (s *ContentStore) MarkDeleted(ctx context.Context, id, deletedByUserID string, expiresAt time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", s.bucket)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("content %s: %w", id, moderation.ErrNotFound)
		}

		var item ContentItem
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}

		now := time.Now()
		item.Deleted = true
		item.DeletedBy = deletedByUserID
		item.DeletedAt = &now
		item.ExpiresAt = &expiresAt

		newData, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), newData)
	})
}

// Reinsert restores a snapshot captured by FindByID, clearing any deletion
// markers.
func (s *ContentStore) Reinsert(ctx context.Context, snapshot []byte) error {
	var item ContentItem
	if err := json.Unmarshal(snapshot, &item); err != nil {
		return fmt.Errorf("failed to unmarshal content snapshot: %w", err)
	}
	if item.ID == "" {
		return fmt.Errorf("content snapshot has no id")
	}

	item.Deleted = false
	item.DeletedBy = ""
	item.DeletedAt = nil
	item.ExpiresAt = nil

	return s.Put(ctx, item)
}

// GetItem retrieves a content item including deletion markers. Used by
// host wiring and tests.
func (s *ContentStore) GetItem(ctx context.Context, id string) (*ContentItem, error) {
	var item *ContentItem

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		item = &ContentItem{}
		return json.Unmarshal(data, item)
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("content %s: %w", id, moderation.ErrNotFound)
	}

	return item, nil
}

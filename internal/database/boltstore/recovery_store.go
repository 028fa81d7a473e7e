package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"trustline/internal/recovery"
)

// RecoveryStore provides persistent storage for soft-deleted records,
// keyed by restoration token with a secondary index on expiry.
type RecoveryStore struct {
	db *bolt.DB
}

var _ recovery.Store = (*RecoveryStore)(nil)

// expiryKey builds the index key: zero-padded expiry nanos plus the token,
// so cursor order is expiry order.
func expiryKey(expiresAt time.Time, token string) []byte {
	return []byte(fmt.Sprintf("%020d:%s", expiresAt.UnixNano(), token))
}

// Create stores a soft-delete record and its expiry index entry.
func (s *RecoveryStore) Create(ctx context.Context, rec recovery.Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRecoveryRecords)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketRecoveryRecords)
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal recovery record: %w", err)
		}

		if err := bucket.Put([]byte(rec.Token), data); err != nil {
			return err
		}

		expiryIndex := tx.Bucket(BucketRecoveryByExpiry)
		if expiryIndex == nil {
			return fmt.Errorf("bucket not found: %s", BucketRecoveryByExpiry)
		}
		return expiryIndex.Put(expiryKey(rec.ExpiresAt, rec.Token), []byte(rec.Token))
	})
}

// Get retrieves a record by token without consuming it.
func (s *RecoveryStore) Get(ctx context.Context, token string) (*recovery.Record, error) {
	var rec *recovery.Record

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRecoveryRecords)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(token))
		if data == nil {
			return nil
		}

		rec = &recovery.Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, recovery.ErrNotFound
	}

	return rec, nil
}

// Consume atomically removes the record iff it exists and is unexpired.
// Bolt serializes writers, so only one of two racing consumers (or the
// sweep) removes the record; the loser observes its absence.
func (s *RecoveryStore) Consume(ctx context.Context, token string, now time.Time) (*recovery.Record, error) {
	var rec *recovery.Record

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRecoveryRecords)
		if bucket == nil {
			return recovery.ErrNotFound
		}

		data := bucket.Get([]byte(token))
		if data == nil {
			return recovery.ErrNotFound
		}

		var r recovery.Record
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}

		if !r.Restorable(now) {
			// Logically gone; the sweep will purge it.
			return recovery.ErrExpired
		}

		if err := bucket.Delete([]byte(token)); err != nil {
			return err
		}
		if expiryIndex := tx.Bucket(BucketRecoveryByExpiry); expiryIndex != nil {
			if err := expiryIndex.Delete(expiryKey(r.ExpiresAt, r.Token)); err != nil {
				return err
			}
		}

		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// SweepExpired permanently removes records whose grace window has passed
// and returns how many were removed. Idempotent: a second sweep with no
// new expirations removes nothing.
func (s *RecoveryStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var removed int

	err := s.db.Update(func(tx *bolt.Tx) error {
		expiryIndex := tx.Bucket(BucketRecoveryByExpiry)
		if expiryIndex == nil {
			return nil
		}
		records := tx.Bucket(BucketRecoveryRecords)
		if records == nil {
			return nil
		}

		// Everything ordered before this key has expiresAt <= now
		cutoff := []byte(fmt.Sprintf("%020d:", now.UnixNano()+1))

		cursor := expiryIndex.Cursor()
		var expired [][2][]byte
		for k, v := cursor.First(); k != nil && string(k) < string(cutoff); k, v = cursor.Next() {
			expired = append(expired, [2][]byte{k, v})
		}

		for _, kv := range expired {
			if err := records.Delete(kv[1]); err != nil {
				return err
			}
			if err := expiryIndex.Delete(kv[0]); err != nil {
				return err
			}
			removed++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// Count returns the number of live soft-delete records.
func (s *RecoveryStore) Count(ctx context.Context) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRecoveryRecords)
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})

	return count, err
}

// Package boltstore provides persistent storage using BoltDB (bbolt).
// It implements the moderation, recovery, directory, and content store
// interfaces over a single database file.
package boltstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for organizing data
var (
	// BucketReports stores reports keyed by id
	BucketReports = []byte("reports")

	// BucketReportsByReporter indexes reports by submitter for duplicate checks
	BucketReportsByReporter = []byte("reports_by_reporter")

	// BucketAuditLog stores the append-only moderation audit trail
	BucketAuditLog = []byte("audit_log")

	// BucketRecoveryRecords stores soft-deleted snapshots keyed by restoration token
	BucketRecoveryRecords = []byte("recovery_records")

	// BucketRecoveryByExpiry indexes recovery records by expiry for the sweep
	BucketRecoveryByExpiry = []byte("recovery_by_expiry")

	// BucketUsers stores user-directory records keyed by user id
	BucketUsers = []byte("users")

	// Content collaborator buckets
	BucketProjects = []byte("projects")
	BucketComments = []byte("comments")
	BucketChats    = []byte("chats")
)

// Store wraps a BoltDB database and provides access to specialized stores.
type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "trustline.db",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens a BoltDB database at the specified path.
// It creates all necessary buckets if they don't exist.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "trustline.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BucketReports,
			BucketReportsByReporter,
			BucketAuditLog,
			BucketRecoveryRecords,
			BucketRecoveryByExpiry,
			BucketUsers,
			BucketProjects,
			BucketComments,
			BucketChats,
		}

		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying BoltDB instance for advanced operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// ModerationStore returns a report and audit store backed by this database.
func (s *Store) ModerationStore() *ModerationStore {
	return &ModerationStore{db: s.db}
}

// RecoveryStore returns a soft-delete record store backed by this database.
func (s *Store) RecoveryStore() *RecoveryStore {
	return &RecoveryStore{db: s.db}
}

// DirectoryStore returns a user-directory store backed by this database.
func (s *Store) DirectoryStore() *DirectoryStore {
	return &DirectoryStore{db: s.db}
}

// ProjectStore returns the project content collaborator.
func (s *Store) ProjectStore() *ContentStore {
	return &ContentStore{db: s.db, bucket: BucketProjects}
}

// CommentStore returns the comment content collaborator.
func (s *Store) CommentStore() *ContentStore {
	return &ContentStore{db: s.db, bucket: BucketComments}
}

// ChatStore returns the chat content collaborator.
func (s *Store) ChatStore() *ContentStore {
	return &ContentStore{db: s.db, bucket: BucketChats}
}

// Stats returns database statistics.
func (s *Store) Stats() bolt.Stats {
	return s.db.Stats()
}

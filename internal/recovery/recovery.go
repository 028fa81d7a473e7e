// Package recovery implements the timed soft-delete/restore store. A
// destructive moderation action captures a full snapshot of the deleted
// entity together with a single-use restoration token; within the kind's
// grace window the owner can exchange the token for the snapshot, after
// which the record is gone for good.
package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind identifies which grace-window policy applies to a record.
type Kind string

const (
	KindProject Kind = "project"
	KindChat    Kind = "chat"
	KindMessage Kind = "message"
)

// Grace windows per kind. Project deletion is typically author-initiated
// and quickly confirmed; chat deletion loses conversational history users
// may only miss much later.
const (
	ProjectGraceWindow = 24 * time.Hour
	ChatGraceWindow    = 14 * 24 * time.Hour
)

// GraceWindow returns the restoration window for a kind.
func GraceWindow(kind Kind) time.Duration {
	if kind == KindProject {
		return ProjectGraceWindow
	}
	return ChatGraceWindow
}

// ValidKind reports whether k is a recoverable entity kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindProject, KindChat, KindMessage:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when no record matches a restoration token,
	// including a token that has already been consumed.
	ErrNotFound = errors.New("no restorable record for token")

	// ErrExpired is returned when the grace window has passed. The record
	// is logically gone even if not yet physically purged.
	ErrExpired = errors.New("this item can no longer be restored")

	// ErrNotOwner is returned when the requesting user did not own the
	// deleted entity.
	ErrNotOwner = errors.New("only the owner may restore this item")
)

// Record is a time-boxed snapshot of a soft-deleted entity.
type Record struct {
	Token       string          `json:"token"`
	Kind        Kind            `json:"kind"`
	OriginalID  string          `json:"original_id"`
	OwnerUserID string          `json:"owner_user_id"`
	Snapshot    json.RawMessage `json:"snapshot"`
	DeletedAt   time.Time       `json:"deleted_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Restorable reports whether the record is still within its grace window.
func (r *Record) Restorable(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Store defines persistence for soft-deleted records, keyed by restoration
// token with a secondary index on expiry for the sweep. Implementations
// must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, token string) (*Record, error)

	// Consume atomically removes the record iff it exists and is still
	// within its grace window, returning it. It returns ErrNotFound for
	// a missing or already-consumed token and ErrExpired past the window.
	// Deletion of the record is the terminal step, so Consume and
	// SweepExpired are safe to run concurrently: whichever wins removes
	// the record, the other observes its absence.
	Consume(ctx context.Context, token string, now time.Time) (*Record, error)

	// SweepExpired permanently removes records past their expiry and
	// returns how many were removed. Idempotent.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	Count(ctx context.Context) (int, error)
}

// Reinserter puts a restored snapshot back into its originating content
// store.
type Reinserter interface {
	Reinsert(ctx context.Context, snapshot []byte) error
}

// Service implements the soft-delete/restore operations over a Store and
// the per-kind content collaborators.
type Service struct {
	store    Store
	reinsert map[Kind]Reinserter
	now      func() time.Time
	newToken func() (string, error)
}

// NewService creates a recovery service. reinserters maps each kind to the
// content store that can accept its restored snapshots.
func NewService(store Store, reinserters map[Kind]Reinserter) *Service {
	return &Service{
		store:    store,
		reinsert: reinserters,
		now:      time.Now,
		newToken: newRestorationToken,
	}
}

// SoftDelete captures the full entity, computes the expiry from the kind's
// grace window, and persists the record under a fresh single-use token.
// Delivery of the token to the owner is the caller's concern.
func (s *Service) SoftDelete(ctx context.Context, kind Kind, originalID, ownerUserID string, snapshot []byte) (*Record, error) {
	if !ValidKind(kind) {
		return nil, fmt.Errorf("unknown recovery kind %q", kind)
	}

	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate restoration token: %w", err)
	}

	now := s.now()
	rec := Record{
		Token:       token,
		Kind:        kind,
		OriginalID:  originalID,
		OwnerUserID: ownerUserID,
		Snapshot:    snapshot,
		DeletedAt:   now,
		ExpiresAt:   now.Add(GraceWindow(kind)),
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist soft-delete record: %w", err)
	}

	log.Info().
		Str("kind", string(kind)).
		Str("original_id", originalID).
		Str("owner", ownerUserID).
		Time("expires_at", rec.ExpiresAt).
		Msg("recovery: entity soft-deleted")

	return &rec, nil
}

// Restore exchanges a token for the snapshot it guards. It reinserts the
// snapshot into the originating content store, removes the record, and
// returns the snapshot. The token is single-use: a concurrent restore or
// sweep that removes the record first wins, and this call reports
// ErrNotFound or ErrExpired.
func (s *Service) Restore(ctx context.Context, token, requestingUserID string) ([]byte, error) {
	rec, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec.OwnerUserID != requestingUserID {
		return nil, ErrNotOwner
	}
	if !rec.Restorable(s.now()) {
		return nil, ErrExpired
	}

	reinserter, ok := s.reinsert[rec.Kind]
	if !ok {
		return nil, fmt.Errorf("no content store registered for kind %q", rec.Kind)
	}
	if err := reinserter.Reinsert(ctx, rec.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to reinsert %s %s: %w", rec.Kind, rec.OriginalID, err)
	}

	if _, err := s.store.Consume(ctx, token, s.now()); err != nil {
		return nil, err
	}

	log.Info().
		Str("kind", string(rec.Kind)).
		Str("original_id", rec.OriginalID).
		Str("owner", rec.OwnerUserID).
		Msg("recovery: entity restored")

	return rec.Snapshot, nil
}

// SweepExpired removes all records past their grace window.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	return s.store.SweepExpired(ctx, s.now())
}

// Count returns the number of live soft-delete records.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

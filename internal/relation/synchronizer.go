// Package relation persists membership diffs of a many-to-many relation. An
// owner (an account) holds a change-tracked set of member ids (liked links);
// on save only the delta is written, inside one transaction.
package relation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/collection"
	"github.com/sundayezeilo/shortlinks/internal/errx"
)

// ErrTransactionFailed wraps any store error raised while persisting. The
// transaction was rolled back and the caller's diff is left intact.
var ErrTransactionFailed = errors.New("relation transaction failed")

// Owner carries the owner's scalar fields written on every persist.
type Owner struct {
	ID   uuid.UUID
	Name string
}

// Store is the transactional view of the join table.
type Store interface {
	// UpdateOwner writes the owner's scalar fields.
	UpdateOwner(ctx context.Context, owner Owner) error
	// InsertMember adds the (owner, member) pair. It reports false when the
	// pair already existed.
	InsertMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error)
	// DeleteMember removes the (owner, member) pair. It reports false when
	// the pair was absent.
	DeleteMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error)
	// AdjustLikeCount adds delta to the member's like count, floored at 0.
	AdjustLikeCount(ctx context.Context, memberID uuid.UUID, delta int64) error
}

// TxRunner runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// Result counts what a persist actually changed.
type Result struct {
	Inserted int
	Deleted  int
	// Skipped counts diff entries that were already applied: inserts of an
	// existing pair and deletes of an absent one.
	Skipped int
}

// Synchronizer applies ChangeTracked diffs to the join table.
type Synchronizer struct {
	tx     TxRunner
	logger *slog.Logger
}

// SynchronizerConfig holds configuration for the synchronizer.
type SynchronizerConfig struct {
	Logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer over tx.
func NewSynchronizer(tx TxRunner, config *SynchronizerConfig) *Synchronizer {
	if config == nil {
		config = &SynchronizerConfig{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{
		tx:     tx,
		logger: logger,
	}
}

// Persist updates the owner, inserts the added members and deletes the
// removed ones in a single transaction. On success members is committed so
// a second Persist without new changes writes no join rows. On failure
// nothing is applied and members keeps its diff.
//
// Concurrent persists for the same owner are not coordinated; the last
// transaction to commit wins.
func (s *Synchronizer) Persist(ctx context.Context, owner Owner, members *collection.ChangeTracked[uuid.UUID]) (Result, error) {
	const op = "relation.synchronizer.Persist"

	added := members.Added()
	removed := members.Removed()

	var res Result
	err := s.tx.WithinTx(ctx, func(st Store) error {
		res = Result{}

		if err := st.UpdateOwner(ctx, owner); err != nil {
			return fmt.Errorf("update owner: %w", err)
		}

		for _, id := range added {
			ok, err := st.InsertMember(ctx, owner.ID, id)
			if err != nil {
				return fmt.Errorf("insert member %s: %w", id, err)
			}
			if !ok {
				res.Skipped++
				continue
			}
			if err := st.AdjustLikeCount(ctx, id, 1); err != nil {
				return fmt.Errorf("increment like count %s: %w", id, err)
			}
			res.Inserted++
		}

		for _, id := range removed {
			ok, err := st.DeleteMember(ctx, owner.ID, id)
			if err != nil {
				return fmt.Errorf("delete member %s: %w", id, err)
			}
			if !ok {
				res.Skipped++
				continue
			}
			if err := st.AdjustLikeCount(ctx, id, -1); err != nil {
				return fmt.Errorf("decrement like count %s: %w", id, err)
			}
			res.Deleted++
		}

		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist relation diff",
			"owner_id", owner.ID,
			"added", len(added),
			"removed", len(removed),
			"error", err.Error(),
		)
		return Result{}, errx.E(op, errx.Internal, fmt.Errorf("%w: %w", ErrTransactionFailed, err))
	}

	members.Commit()

	s.logger.DebugContext(ctx, "relation diff persisted",
		"owner_id", owner.ID,
		"inserted", res.Inserted,
		"deleted", res.Deleted,
		"skipped", res.Skipped,
	)
	return res, nil
}

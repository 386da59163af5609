// Package score is the client contract over the external atomic counter and
// sorted-set store: sequence allocation for short codes, additive scores per
// member and top-N queries.
package score

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/kv"
)

// ErrInvalidCounterState reports a numeric value from the store that can
// not be valid (non-finite, negative, or a non-positive sequence). It is
// fatal and never repaired by the caller.
var ErrInvalidCounterState = errors.New("invalid counter state")

const (
	// DefaultSequenceKey holds the short-code sequence.
	DefaultSequenceKey = "links:seq"
	// DefaultSequenceStart is the value the sequence is initialised to, so
	// the first minted code is already a few characters long.
	DefaultSequenceStart int64 = 100_000
)

// Board names a sorted set of scores.
type Board string

const (
	// AccessBoard ranks links by how often they were resolved.
	AccessBoard Board = "ranking:access"
)

// Entry is one ranked member.
type Entry struct {
	Member string
	Score  float64
}

// Counter defines the operations the application uses on the score store.
type Counter interface {
	// NextID returns the next value of a monotonically increasing sequence.
	NextID(ctx context.Context) (int64, error)
	// Increment adds amount to member's score on board and returns the new score.
	Increment(ctx context.Context, board Board, member string, amount float64) (float64, error)
	// Top returns at most limit entries of board in descending score order.
	Top(ctx context.Context, board Board, limit int) ([]Entry, error)
}

type counter struct {
	store         kv.Store
	sequenceKey   string
	sequenceStart int64
}

// CounterConfig holds configuration for the counter.
type CounterConfig struct {
	SequenceKey   string
	SequenceStart int64
}

// NewCounter creates a Counter over store.
func NewCounter(store kv.Store, config *CounterConfig) Counter {
	if config == nil {
		config = &CounterConfig{}
	}

	key := config.SequenceKey
	if key == "" {
		key = DefaultSequenceKey
	}

	start := config.SequenceStart
	if start <= 0 {
		start = DefaultSequenceStart
	}

	return &counter{
		store:         store,
		sequenceKey:   key,
		sequenceStart: start,
	}
}

func (c *counter) NextID(ctx context.Context) (int64, error) {
	const op = "score.counter.NextID"

	// Only the first caller ever initialises the sequence.
	if _, err := c.store.SetNX(ctx, c.sequenceKey, c.sequenceStart); err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}

	n, err := c.store.Incr(ctx, c.sequenceKey)
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	if n <= 0 {
		return 0, errx.E(op, errx.Internal, fmt.Errorf("%w: sequence %q returned %d", ErrInvalidCounterState, c.sequenceKey, n))
	}
	return n, nil
}

func (c *counter) Increment(ctx context.Context, board Board, member string, amount float64) (float64, error) {
	const op = "score.counter.Increment"

	if member == "" {
		return 0, errx.E(op, errx.Invalid, errors.New("member cannot be empty"))
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, errx.E(op, errx.Invalid, fmt.Errorf("amount must be finite and non-negative, got %v", amount))
	}

	s, err := c.store.ZIncrBy(ctx, string(board), member, amount)
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	if err := checkScore(s); err != nil {
		return 0, errx.E(op, errx.Internal, fmt.Errorf("%w: member %q on %s", err, member, board))
	}
	return s, nil
}

func (c *counter) Top(ctx context.Context, board Board, limit int) ([]Entry, error) {
	const op = "score.counter.Top"

	if limit <= 0 {
		return []Entry{}, nil
	}

	members, err := c.store.ZRevRangeWithScores(ctx, string(board), 0, int64(limit)-1)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}

	entries := make([]Entry, 0, min(len(members), limit))
	for _, m := range members[:min(len(members), limit)] {
		if err := checkScore(m.Score); err != nil {
			return nil, errx.E(op, errx.Internal, fmt.Errorf("%w: member %q on %s", err, m.Member, board))
		}
		entries = append(entries, Entry{Member: m.Member, Score: m.Score})
	}
	return entries, nil
}

func checkScore(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: score %v", ErrInvalidCounterState, v)
	}
	return nil
}

// Scores indexes entries by member.
func Scores(entries []Entry) map[string]float64 {
	m := make(map[string]float64, len(entries))
	for _, e := range entries {
		m[e.Member] = e.Score
	}
	return m
}

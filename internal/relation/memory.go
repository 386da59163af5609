package relation

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
)

type pair struct {
	owner, member uuid.UUID
}

type memState struct {
	owners     map[uuid.UUID]Owner
	pairs      map[pair]struct{}
	likeCounts map[uuid.UUID]int64
}

func (s memState) clone() memState {
	return memState{
		owners:     maps.Clone(s.owners),
		pairs:      maps.Clone(s.pairs),
		likeCounts: maps.Clone(s.likeCounts),
	}
}

// Memory is an in-process TxRunner. Each transaction works on a copy of the
// state that replaces the committed state only when fn succeeds.
// Transactions are serialized.
type Memory struct {
	mu    sync.Mutex
	state memState
}

var _ TxRunner = (*Memory)(nil)

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		state: memState{
			owners:     make(map[uuid.UUID]Owner),
			pairs:      make(map[pair]struct{}),
			likeCounts: make(map[uuid.UUID]int64),
		},
	}
}

// PutOwner registers an owner outside any transaction.
func (m *Memory) PutOwner(owner Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.owners[owner.ID] = owner
}

// Owner returns the committed owner.
func (m *Memory) Owner(id uuid.UUID) (Owner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.owners[id]
	return o, ok
}

// Members returns the committed member ids of owner, in no particular order.
func (m *Memory) Members(owner uuid.UUID) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []uuid.UUID
	for p := range m.state.pairs {
		if p.owner == owner {
			out = append(out, p.member)
		}
	}
	return out
}

// LikeCount returns the committed like count of member.
func (m *Memory) LikeCount(member uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.likeCounts[member]
}

func (m *Memory) WithinTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := m.state.clone()
	if err := fn(&memStore{state: staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

type memStore struct {
	state memState
}

func (s *memStore) UpdateOwner(_ context.Context, owner Owner) error {
	if _, ok := s.state.owners[owner.ID]; !ok {
		return ErrOwnerNotFound
	}
	s.state.owners[owner.ID] = owner
	return nil
}

func (s *memStore) InsertMember(_ context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	p := pair{ownerID, memberID}
	if _, ok := s.state.pairs[p]; ok {
		return false, nil
	}
	s.state.pairs[p] = struct{}{}
	return true, nil
}

func (s *memStore) DeleteMember(_ context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	p := pair{ownerID, memberID}
	if _, ok := s.state.pairs[p]; !ok {
		return false, nil
	}
	delete(s.state.pairs, p)
	return true, nil
}

func (s *memStore) AdjustLikeCount(_ context.Context, memberID uuid.UUID, delta int64) error {
	s.state.likeCounts[memberID] = max(s.state.likeCounts[memberID]+delta, 0)
	return nil
}

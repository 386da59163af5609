package kv

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	now    func() time.Time
	values map[string]memEntry
	zsets  map[string]map[string]float64
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the clock used for TTL expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:    time.Now,
		values: make(map[string]memEntry),
		zsets:  make(map[string]map[string]float64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lookup returns the live entry for key, dropping it if expired.
// Callers must hold m.mu.
func (m *Memory) lookup(key string) (memEntry, bool) {
	e, ok := m.values[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.values, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *Memory) SetNX(_ context.Context, key string, value int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.values[key] = memEntry{value: []byte(strconv.FormatInt(value, 10))}
	return true, nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	e, ok := m.lookup(key)
	if ok {
		v, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
		n = v
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	m.values[key] = e
	return n, nil
}

func (m *Memory) ZIncrBy(_ context.Context, key, member string, amount float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.zsets[key]
	if !ok {
		set = make(map[string]float64)
		m.zsets[key] = set
	}
	set[member] += amount
	return set[member], nil
}

func (m *Memory) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) ([]Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.zsets[key]
	members := make([]Member, 0, len(set))
	for name, score := range set {
		members = append(members, Member{Member: name, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member > members[j].Member
	})

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []Member{}, nil
	}
	return members[start : stop+1], nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memEntry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.values[key] = e
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, k := range keys {
		if _, ok := m.lookup(k); ok {
			delete(m.values, k)
			n++
			continue
		}
		if _, ok := m.zsets[k]; ok {
			delete(m.zsets, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

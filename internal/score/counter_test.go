package score

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/kv"
)

/***************
 * Mocks / Stubs
 ***************/

// stubStore wraps a real store and lets tests override single operations.
type stubStore struct {
	kv.Store
	setNXFunc   func(ctx context.Context, key string, value int64) (bool, error)
	incrFunc    func(ctx context.Context, key string) (int64, error)
	zIncrByFunc func(ctx context.Context, key, member string, amount float64) (float64, error)
	zRangeFunc  func(ctx context.Context, key string, start, stop int64) ([]kv.Member, error)
}

func (s *stubStore) SetNX(ctx context.Context, key string, value int64) (bool, error) {
	if s.setNXFunc != nil {
		return s.setNXFunc(ctx, key, value)
	}
	return s.Store.SetNX(ctx, key, value)
}

func (s *stubStore) Incr(ctx context.Context, key string) (int64, error) {
	if s.incrFunc != nil {
		return s.incrFunc(ctx, key)
	}
	return s.Store.Incr(ctx, key)
}

func (s *stubStore) ZIncrBy(ctx context.Context, key, member string, amount float64) (float64, error) {
	if s.zIncrByFunc != nil {
		return s.zIncrByFunc(ctx, key, member, amount)
	}
	return s.Store.ZIncrBy(ctx, key, member, amount)
}

func (s *stubStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]kv.Member, error) {
	if s.zRangeFunc != nil {
		return s.zRangeFunc(ctx, key, start, stop)
	}
	return s.Store.ZRevRangeWithScores(ctx, key, start, stop)
}

/***************
 * NextID
 ***************/

func TestCounter_NextID(t *testing.T) {
	t.Run("initialises once then increments", func(t *testing.T) {
		c := NewCounter(kv.NewMemory(), &CounterConfig{SequenceStart: 500})

		for want := int64(501); want <= 503; want++ {
			got, err := c.NextID(context.Background())
			if err != nil {
				t.Fatalf("NextID() unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("NextID() = %d, want %d", got, want)
			}
		}
	})

	t.Run("never resets an existing sequence", func(t *testing.T) {
		store := kv.NewMemory()
		first := NewCounter(store, &CounterConfig{SequenceStart: 10})
		if _, err := first.NextID(context.Background()); err != nil {
			t.Fatalf("NextID() unexpected error: %v", err)
		}

		// a second instance with a different start must continue, not restart
		second := NewCounter(store, &CounterConfig{SequenceStart: 9000})
		got, err := second.NextID(context.Background())
		if err != nil {
			t.Fatalf("NextID() unexpected error: %v", err)
		}
		if got != 12 {
			t.Errorf("NextID() = %d, want 12", got)
		}
	})

	t.Run("uses defaults with nil config", func(t *testing.T) {
		c := NewCounter(kv.NewMemory(), nil)
		got, err := c.NextID(context.Background())
		if err != nil {
			t.Fatalf("NextID() unexpected error: %v", err)
		}
		if got != DefaultSequenceStart+1 {
			t.Errorf("NextID() = %d, want %d", got, DefaultSequenceStart+1)
		}
	})

	t.Run("concurrent callers get distinct values", func(t *testing.T) {
		c := NewCounter(kv.NewMemory(), nil)

		const workers = 50
		ids := make(chan int64, workers)
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := c.NextID(context.Background())
				if err != nil {
					t.Errorf("NextID() unexpected error: %v", err)
					return
				}
				ids <- id
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool)
		for id := range ids {
			if seen[id] {
				t.Errorf("NextID() returned duplicate %d", id)
			}
			seen[id] = true
		}
		if len(seen) != workers {
			t.Errorf("got %d distinct ids, want %d", len(seen), workers)
		}
	})

	t.Run("non-positive sequence is invalid counter state", func(t *testing.T) {
		store := &stubStore{
			Store: kv.NewMemory(),
			incrFunc: func(context.Context, string) (int64, error) {
				return 0, nil
			},
		}

		_, err := NewCounter(store, nil).NextID(context.Background())
		if !errors.Is(err, ErrInvalidCounterState) {
			t.Fatalf("NextID() error = %v, want ErrInvalidCounterState", err)
		}
		if errx.KindOf(err) != errx.Internal {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Internal)
		}
	})

	t.Run("store failure is unavailable", func(t *testing.T) {
		store := &stubStore{
			Store: kv.NewMemory(),
			setNXFunc: func(context.Context, string, int64) (bool, error) {
				return false, errors.New("connection refused")
			},
		}

		_, err := NewCounter(store, nil).NextID(context.Background())
		if errx.KindOf(err) != errx.Unavailable {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unavailable)
		}
		if errx.OpOf(err) != "score.counter.NextID" {
			t.Errorf("OpOf(err) = %q, want %q", errx.OpOf(err), "score.counter.NextID")
		}
	})
}

/***************
 * Increment / Top
 ***************/

func TestCounter_IncrementAndTop(t *testing.T) {
	increments := []struct {
		member string
		amount float64
	}{
		{"alpha", 10}, {"beta", 25}, {"gamma", 5},
	}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}

	for _, order := range orders {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			c := NewCounter(kv.NewMemory(), nil)
			ctx := context.Background()

			for _, i := range order {
				in := increments[i]
				if _, err := c.Increment(ctx, AccessBoard, in.member, in.amount); err != nil {
					t.Fatalf("Increment(%s) unexpected error: %v", in.member, err)
				}
			}

			got, err := c.Top(ctx, AccessBoard, 3)
			if err != nil {
				t.Fatalf("Top() unexpected error: %v", err)
			}
			want := []Entry{{"beta", 25}, {"alpha", 10}, {"gamma", 5}}
			if len(got) != len(want) {
				t.Fatalf("Top() = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("Top()[%d] = %v, want %v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestCounter_Increment_Accumulates(t *testing.T) {
	c := NewCounter(kv.NewMemory(), nil)
	ctx := context.Background()

	for _, amount := range []float64{1, 2.5, 0, 3} {
		if _, err := c.Increment(ctx, AccessBoard, "m", amount); err != nil {
			t.Fatalf("Increment() unexpected error: %v", err)
		}
	}
	got, err := c.Increment(ctx, AccessBoard, "m", 1)
	if err != nil {
		t.Fatalf("Increment() unexpected error: %v", err)
	}
	if got != 7.5 {
		t.Errorf("Increment() = %v, want 7.5", got)
	}
}

func TestCounter_Increment_RejectsBadInput(t *testing.T) {
	c := NewCounter(kv.NewMemory(), nil)

	tests := []struct {
		name   string
		member string
		amount float64
	}{
		{"empty member", "", 1},
		{"negative amount", "m", -1},
		{"NaN amount", "m", math.NaN()},
		{"infinite amount", "m", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Increment(context.Background(), AccessBoard, tt.member, tt.amount)
			if errx.KindOf(err) != errx.Invalid {
				t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Invalid)
			}
		})
	}
}

func TestCounter_Increment_InvalidStoreScore(t *testing.T) {
	store := &stubStore{
		Store: kv.NewMemory(),
		zIncrByFunc: func(context.Context, string, string, float64) (float64, error) {
			return math.Inf(1), nil
		},
	}

	_, err := NewCounter(store, nil).Increment(context.Background(), AccessBoard, "m", 1)
	if !errors.Is(err, ErrInvalidCounterState) {
		t.Errorf("Increment() error = %v, want ErrInvalidCounterState", err)
	}
}

func TestCounter_Top(t *testing.T) {
	t.Run("never returns more than limit", func(t *testing.T) {
		c := NewCounter(kv.NewMemory(), nil)
		ctx := context.Background()

		for i := 1; i <= 15; i++ {
			if _, err := c.Increment(ctx, AccessBoard, fmt.Sprintf("m%02d", i), float64(i)); err != nil {
				t.Fatalf("Increment() unexpected error: %v", err)
			}
		}

		got, err := c.Top(ctx, AccessBoard, 10)
		if err != nil {
			t.Fatalf("Top() unexpected error: %v", err)
		}
		if len(got) != 10 {
			t.Fatalf("len(Top()) = %d, want 10", len(got))
		}
		for i, e := range got {
			want := fmt.Sprintf("m%02d", 15-i)
			if e.Member != want {
				t.Errorf("Top()[%d].Member = %s, want %s", i, e.Member, want)
			}
		}
	})

	t.Run("truncates an oversized store response", func(t *testing.T) {
		store := &stubStore{
			Store: kv.NewMemory(),
			zRangeFunc: func(context.Context, string, int64, int64) ([]kv.Member, error) {
				return []kv.Member{{"a", 3}, {"b", 2}, {"c", 1}}, nil
			},
		}
		got, err := NewCounter(store, nil).Top(context.Background(), AccessBoard, 2)
		if err != nil {
			t.Fatalf("Top() unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len(Top()) = %d, want 2", len(got))
		}
	})

	t.Run("empty board returns empty slice", func(t *testing.T) {
		got, err := NewCounter(kv.NewMemory(), nil).Top(context.Background(), AccessBoard, 5)
		if err != nil {
			t.Fatalf("Top() unexpected error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Top() = %#v, want empty non-nil slice", got)
		}
	})

	t.Run("zero limit does not touch the store", func(t *testing.T) {
		store := &stubStore{
			Store: kv.NewMemory(),
			zRangeFunc: func(context.Context, string, int64, int64) ([]kv.Member, error) {
				t.Fatal("ZRevRangeWithScores should not be called")
				return nil, nil
			},
		}
		got, err := NewCounter(store, nil).Top(context.Background(), AccessBoard, 0)
		if err != nil || len(got) != 0 {
			t.Errorf("Top(0) = %v, %v; want empty, nil", got, err)
		}
	})

	t.Run("negative score is invalid counter state", func(t *testing.T) {
		store := &stubStore{
			Store: kv.NewMemory(),
			zRangeFunc: func(context.Context, string, int64, int64) ([]kv.Member, error) {
				return []kv.Member{{"a", 3}, {"b", -1}}, nil
			},
		}
		_, err := NewCounter(store, nil).Top(context.Background(), AccessBoard, 5)
		if !errors.Is(err, ErrInvalidCounterState) {
			t.Fatalf("Top() error = %v, want ErrInvalidCounterState", err)
		}
		if errx.KindOf(err) != errx.Internal {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Internal)
		}
	})

	t.Run("store failure is unavailable", func(t *testing.T) {
		store := &stubStore{
			Store: kv.NewMemory(),
			zRangeFunc: func(context.Context, string, int64, int64) ([]kv.Member, error) {
				return nil, errors.New("i/o timeout")
			},
		}
		_, err := NewCounter(store, nil).Top(context.Background(), AccessBoard, 5)
		if errx.KindOf(err) != errx.Unavailable {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unavailable)
		}
	})
}

func TestScores(t *testing.T) {
	m := Scores([]Entry{{"a", 1}, {"b", 2.5}})
	if m["a"] != 1 || m["b"] != 2.5 || len(m) != 2 {
		t.Errorf("Scores() = %v", m)
	}
	if _, ok := m["c"]; ok {
		t.Error("Scores() contains unexpected member c")
	}
}

package relation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/collection"
	"github.com/sundayezeilo/shortlinks/internal/errx"
)

/*** Mocks / Stubs ***/

// countingRunner wraps a Memory and counts the store calls made through it.
// failInsert, when set, fails InsertMember for that member.
type countingRunner struct {
	*Memory
	inserts    int
	deletes    int
	failInsert uuid.UUID
}

func (r *countingRunner) WithinTx(ctx context.Context, fn func(Store) error) error {
	return r.Memory.WithinTx(ctx, func(st Store) error {
		return fn(&countingStore{Store: st, r: r})
	})
}

type countingStore struct {
	Store
	r *countingRunner
}

var errInsert = errors.New("foreign key violation")

func (s *countingStore) InsertMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	s.r.inserts++
	if memberID == s.r.failInsert {
		return false, errInsert
	}
	return s.Store.InsertMember(ctx, ownerID, memberID)
}

func (s *countingStore) DeleteMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	s.r.deletes++
	return s.Store.DeleteMember(ctx, ownerID, memberID)
}

func newRunner(owner Owner) *countingRunner {
	mem := NewMemory()
	mem.PutOwner(owner)
	return &countingRunner{Memory: mem}
}

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func sameSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uuid.UUID]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}

/*** Tests ***/

func TestPersist_AppliesDiff(t *testing.T) {
	owner := Owner{ID: uuid.New(), Name: "ada"}
	runner := newRunner(owner)
	sync := NewSynchronizer(runner, nil)
	links := ids(3)

	members := collection.New[uuid.UUID](nil)
	members.Add(links[0])
	members.Add(links[1])

	res, err := sync.Persist(context.Background(), owner, members)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if res.Inserted != 2 || res.Deleted != 0 || res.Skipped != 0 {
		t.Errorf("Persist() = %+v, want 2 inserted", res)
	}
	if !sameSet(runner.Members(owner.ID), links[:2]) {
		t.Errorf("Members() = %v, want %v", runner.Members(owner.ID), links[:2])
	}
	if members.HasChanges() {
		t.Error("HasChanges() = true after successful Persist, want false")
	}

	members.Remove(links[0])
	members.Add(links[2])

	res, err = sync.Persist(context.Background(), owner, members)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if res.Inserted != 1 || res.Deleted != 1 {
		t.Errorf("Persist() = %+v, want 1 inserted and 1 deleted", res)
	}
	if !sameSet(runner.Members(owner.ID), links[1:]) {
		t.Errorf("Members() = %v, want %v", runner.Members(owner.ID), links[1:])
	}
	if got := runner.LikeCount(links[0]); got != 0 {
		t.Errorf("LikeCount(unliked) = %d, want 0", got)
	}
	if got := runner.LikeCount(links[2]); got != 1 {
		t.Errorf("LikeCount(liked) = %d, want 1", got)
	}
}

func TestPersist_SecondCallWithoutChangesWritesNothing(t *testing.T) {
	owner := Owner{ID: uuid.New(), Name: "ada"}
	runner := newRunner(owner)
	sync := NewSynchronizer(runner, nil)
	links := ids(2)

	members := collection.New[uuid.UUID](nil)
	members.Add(links[0])
	members.Add(links[1])

	if _, err := sync.Persist(context.Background(), owner, members); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	inserts, deletes := runner.inserts, runner.deletes

	res, err := sync.Persist(context.Background(), owner, members)
	if err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}
	if res != (Result{}) {
		t.Errorf("second Persist() = %+v, want zero result", res)
	}
	if runner.inserts != inserts || runner.deletes != deletes {
		t.Errorf("second Persist() made %d inserts and %d deletes, want 0",
			runner.inserts-inserts, runner.deletes-deletes)
	}
}

func TestPersist_DuplicateDiffIsSkipped(t *testing.T) {
	owner := Owner{ID: uuid.New(), Name: "ada"}
	runner := newRunner(owner)
	sync := NewSynchronizer(runner, nil)
	link := uuid.New()

	// Two in-memory copies of the same account both like the same link.
	first := collection.New[uuid.UUID](nil)
	first.Add(link)
	second := collection.New[uuid.UUID](nil)
	second.Add(link)

	if _, err := sync.Persist(context.Background(), owner, first); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	res, err := sync.Persist(context.Background(), owner, second)
	if err != nil {
		t.Fatalf("Persist() with duplicate diff error = %v, want nil", err)
	}
	if res.Inserted != 0 || res.Skipped != 1 {
		t.Errorf("Persist() = %+v, want 1 skipped", res)
	}
	if got := runner.LikeCount(link); got != 1 {
		t.Errorf("LikeCount() = %d, want 1", got)
	}

	// Removing an already absent pair is a no-op as well.
	stale := collection.New([]uuid.UUID{uuid.New()})
	stale.Update(nil)
	res, err = sync.Persist(context.Background(), owner, stale)
	if err != nil {
		t.Fatalf("Persist() with absent delete error = %v", err)
	}
	if res.Deleted != 0 || res.Skipped != 1 {
		t.Errorf("Persist() = %+v, want 1 skipped", res)
	}
}

func TestPersist_FailureRollsBackAndKeepsDiff(t *testing.T) {
	owner := Owner{ID: uuid.New(), Name: "ada"}
	runner := newRunner(owner)
	sync := NewSynchronizer(runner, nil)
	links := ids(2)
	runner.failInsert = links[1]

	members := collection.New[uuid.UUID](nil)
	members.Add(links[0])
	members.Add(links[1])

	renamed := Owner{ID: owner.ID, Name: "grace"}
	_, err := sync.Persist(context.Background(), renamed, members)
	if err == nil {
		t.Fatal("Persist() error = nil, want error")
	}
	if !errors.Is(err, ErrTransactionFailed) {
		t.Errorf("Persist() error = %v, want ErrTransactionFailed", err)
	}
	if !errors.Is(err, errInsert) {
		t.Errorf("Persist() error = %v, want cause preserved", err)
	}
	if errx.KindOf(err) != errx.Internal {
		t.Errorf("KindOf() = %v, want %v", errx.KindOf(err), errx.Internal)
	}

	if got := runner.Members(owner.ID); len(got) != 0 {
		t.Errorf("Members() = %v after rollback, want none", got)
	}
	if got := runner.LikeCount(links[0]); got != 0 {
		t.Errorf("LikeCount() = %d after rollback, want 0", got)
	}
	if o, _ := runner.Owner(owner.ID); o.Name != "ada" {
		t.Errorf("Owner().Name = %q after rollback, want %q", o.Name, "ada")
	}

	if got := members.Added(); !sameSet(got, links) {
		t.Errorf("Added() = %v after failure, want %v", got, links)
	}

	// A retry of the kept diff succeeds once the cause is gone.
	runner.failInsert = uuid.Nil
	res, err := sync.Persist(context.Background(), renamed, members)
	if err != nil {
		t.Fatalf("retry Persist() error = %v", err)
	}
	if res.Inserted != 2 {
		t.Errorf("retry Persist() = %+v, want 2 inserted", res)
	}
	if o, _ := runner.Owner(owner.ID); o.Name != "grace" {
		t.Errorf("Owner().Name = %q, want %q", o.Name, "grace")
	}
}

func TestPersist_UnknownOwner(t *testing.T) {
	runner := newRunner(Owner{ID: uuid.New()})
	sync := NewSynchronizer(runner, nil)

	members := collection.New[uuid.UUID](nil)
	members.Add(uuid.New())

	_, err := sync.Persist(context.Background(), Owner{ID: uuid.New()}, members)
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Errorf("Persist() error = %v, want ErrOwnerNotFound", err)
	}
	if !members.HasChanges() {
		t.Error("HasChanges() = false after failure, want diff kept")
	}
}

func TestPersist_EmptyDiffUpdatesOwner(t *testing.T) {
	owner := Owner{ID: uuid.New(), Name: "ada"}
	runner := newRunner(owner)
	sync := NewSynchronizer(runner, nil)

	res, err := sync.Persist(context.Background(), Owner{ID: owner.ID, Name: "lin"}, collection.New[uuid.UUID](nil))
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if res != (Result{}) {
		t.Errorf("Persist() = %+v, want zero result", res)
	}
	if o, _ := runner.Owner(owner.ID); o.Name != "lin" {
		t.Errorf("Owner().Name = %q, want %q", o.Name, "lin")
	}
	if runner.inserts != 0 || runner.deletes != 0 {
		t.Errorf("store calls = (%d, %d), want none", runner.inserts, runner.deletes)
	}
}

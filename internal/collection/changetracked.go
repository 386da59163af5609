// Package collection provides a set-like container that remembers how its
// membership changed relative to a snapshot, so persistence layers can write
// only the delta.
package collection

import "slices"

// ChangeTracked holds an ordered set of items together with the items added
// and removed since the last snapshot.
//
// At all times Items() == (snapshot - Removed()) + Added(), and an item is
// never in both Added() and Removed(). A ChangeTracked is not safe for
// concurrent use; it is owned by a single aggregate.
type ChangeTracked[T any] struct {
	eq      func(a, b T) bool
	initial []T
	current []T
	added   []T
	removed []T
}

// New returns a collection whose snapshot and current items are both items.
// Items are compared with ==.
func New[T comparable](items []T) *ChangeTracked[T] {
	return NewFunc(items, func(a, b T) bool { return a == b })
}

// NewFunc is like New but compares items with eq. Use it when values should
// be matched by a stable key rather than by identity. It panics if eq is nil.
func NewFunc[T any](items []T, eq func(a, b T) bool) *ChangeTracked[T] {
	if eq == nil {
		panic("collection: NewFunc called with nil eq")
	}
	c := &ChangeTracked[T]{eq: eq}
	for _, item := range items {
		if !c.contains(c.initial, item) {
			c.initial = append(c.initial, item)
		}
	}
	c.current = slices.Clone(c.initial)
	return c
}

// Add inserts item. Re-adding an item that was removed since the snapshot
// cancels the removal instead of recording an addition.
func (c *ChangeTracked[T]) Add(item T) {
	if i := c.index(c.removed, item); i >= 0 {
		c.removed = slices.Delete(c.removed, i, i+1)
		c.current = append(c.current, item)
		return
	}
	if c.contains(c.current, item) {
		return
	}
	c.current = append(c.current, item)
	c.added = append(c.added, item)
}

// Remove drops item. Removing an item that was added since the snapshot
// cancels the addition instead of recording a removal.
func (c *ChangeTracked[T]) Remove(item T) {
	i := c.index(c.current, item)
	if i < 0 {
		return
	}
	member := c.current[i]
	c.current = slices.Delete(c.current, i, i+1)

	if j := c.index(c.added, item); j >= 0 {
		c.added = slices.Delete(c.added, j, j+1)
		return
	}
	if c.contains(c.initial, item) && !c.contains(c.removed, item) {
		c.removed = append(c.removed, member)
	}
}

// Update replaces the current items. The diff is recomputed against the
// snapshot, not against the items held before the call.
func (c *ChangeTracked[T]) Update(items []T) {
	c.current = c.current[:0:0]
	for _, item := range items {
		if !c.contains(c.current, item) {
			c.current = append(c.current, item)
		}
	}

	c.added = nil
	for _, item := range c.current {
		if !c.contains(c.initial, item) {
			c.added = append(c.added, item)
		}
	}

	c.removed = nil
	for _, item := range c.initial {
		if !c.contains(c.current, item) {
			c.removed = append(c.removed, item)
		}
	}
}

// Items returns the current items: untouched items in snapshot order followed
// by added items in insertion order.
func (c *ChangeTracked[T]) Items() []T { return slices.Clone(c.current) }

// Added returns the items added since the snapshot.
func (c *ChangeTracked[T]) Added() []T { return slices.Clone(c.added) }

// Removed returns the snapshot items removed since the snapshot.
func (c *ChangeTracked[T]) Removed() []T { return slices.Clone(c.removed) }

// Contains reports whether item is currently a member.
func (c *ChangeTracked[T]) Contains(item T) bool { return c.contains(c.current, item) }

// Len returns the number of current items.
func (c *ChangeTracked[T]) Len() int { return len(c.current) }

// HasChanges reports whether there is anything to persist.
func (c *ChangeTracked[T]) HasChanges() bool {
	return len(c.added) > 0 || len(c.removed) > 0
}

// Commit takes a new snapshot of the current items and clears the diff.
// Persistence calls it once the diff has been durably applied.
func (c *ChangeTracked[T]) Commit() {
	c.initial = slices.Clone(c.current)
	c.added = nil
	c.removed = nil
}

func (c *ChangeTracked[T]) index(items []T, item T) int {
	return slices.IndexFunc(items, func(v T) bool { return c.eq(v, item) })
}

func (c *ChangeTracked[T]) contains(items []T, item T) bool {
	return c.index(items, item) >= 0
}

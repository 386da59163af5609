// Package idgen mints primary keys for accounts and links.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator generates unique identifiers.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// Func adapts a plain function to Generator.
type Func func() (uuid.UUID, error)

func (f Func) Generate() (uuid.UUID, error) { return f() }

type v7Gen struct {
	retries int
	next    func() (uuid.UUID, error)
}

type V7Option func(*v7Gen)

// WithRetries sets how many extra attempts follow a failed draw from the
// random source. Negative values are ignored.
func WithRetries(n int) V7Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// NewV7 returns a Generator of time-ordered UUID v7 values. Keys minted by
// one process increase monotonically, so new rows append to the primary key
// index.
func NewV7(opts ...V7Option) Generator {
	g := &v7Gen{retries: 1, next: uuid.NewV7}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() (uuid.UUID, error) {
	var err error
	for range g.retries + 1 {
		var id uuid.UUID
		if id, err = g.next(); err == nil {
			return id, nil
		}
	}
	return uuid.Nil, fmt.Errorf("uuid v7 generation failed after %d attempts: %w", g.retries+1, err)
}

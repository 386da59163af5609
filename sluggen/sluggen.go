// Package sluggen provides short-code generation.
// Generators should be safe for concurrent use.
package sluggen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// Generator generates URL slugs.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, length int) (string, error)
}

// Encode returns the base62 representation of n. n must not be negative.
func Encode(n int64) string {
	if n == 0 {
		return base62Chars[:1]
	}

	var buf [11]byte // 62^11 > 2^63
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base62Chars[n%62]
		n /= 62
	}
	return string(buf[i:])
}

/***************
 * Random
 ***************/

// base62Generator produces random base62 strings.
// It is safe for concurrent use.
type base62Generator struct{}

// NewBase62 returns a new random base62 slug generator.
func NewBase62() Generator {
	return &base62Generator{}
}

// Generate generates a random base62 string of the specified length.
func (g *base62Generator) Generate(_ context.Context, length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = base62Chars[int(b[i])%len(base62Chars)]
	}

	return string(b), nil
}

/***************
 * Sequence
 ***************/

// Sequence hands out increasing positive integers. score.Counter satisfies it.
type Sequence interface {
	NextID(ctx context.Context) (int64, error)
}

type sequenceGenerator struct {
	seq Sequence
}

// NewSequence returns a generator that encodes the next value of seq in
// base62. Codes are unique as long as the sequence never repeats; their
// length grows with the sequence and the requested length is ignored.
func NewSequence(seq Sequence) Generator {
	return &sequenceGenerator{seq: seq}
}

func (g *sequenceGenerator) Generate(ctx context.Context, _ int) (string, error) {
	n, err := g.seq.NextID(ctx)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("sequence returned negative value %d", n)
	}
	return Encode(n), nil
}

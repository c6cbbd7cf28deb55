// Package idgen provides the identifier sources injected into the store.
package idgen

import (
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

type Generator interface {
	NewID() string
}

// UUID issues random version 4 identifiers.
type UUID struct {
	mu sync.Mutex
	r  io.Reader
}

func NewUUID() *UUID { return &UUID{} }

// NewSeededUUID draws randomness from a seeded source, so the same seed yields
// the same sequence of ids.
func NewSeededUUID(seed int64) *UUID {
	return &UUID{r: rand.New(rand.NewSource(seed))}
}

func (g *UUID) NewID() string {
	if g.r == nil {
		return uuid.NewString()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := uuid.NewRandomFromReader(g.r)
	if err != nil {
		// math/rand readers never fail
		panic(fmt.Sprintf("idgen: %v", err))
	}
	return id.String()
}

// Sequence issues prefix-1, prefix-2, ... which keeps fixtures readable.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      uint64
}

func NewSequence(prefix string) *Sequence { return &Sequence{prefix: prefix} }

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

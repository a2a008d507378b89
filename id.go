package callchain

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces the identifiers given to runs and step executions.
type IDGenerator interface {
	ID() uuid.UUID
}

// RandomID generates random (version 4) UUIDs. It is the default generator.
type RandomID struct{}

// ID returns a new random UUID.
func (RandomID) ID() uuid.UUID { return uuid.New() }

// StaticID generates sequential UUIDs, starting at 1. Useful in tests.
type StaticID struct {
	mu sync.Mutex
	n  uint64
}

// ID returns the next sequential UUID.
func (s *StaticID) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], s.n)
	return id
}

var (
	genMu sync.RWMutex
	gen   IDGenerator = RandomID{}
)

// SetIDGenerator replaces the package generator. A nil g restores RandomID.
func SetIDGenerator(g IDGenerator) {
	if g == nil {
		g = RandomID{}
	}
	genMu.Lock()
	defer genMu.Unlock()
	gen = g
}

func nextID() uuid.UUID {
	genMu.RLock()
	g := gen
	genMu.RUnlock()
	return g.ID()
}

// Package ids provides the process-wide time-ordered id generator used for
// user ids and outbox envelope ids.
package ids

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces time-ordered unique ids.
type Generator interface {
	NewID() (uuid.UUID, error)
}

// V7 generates UUID v7 values that are strictly increasing within the
// process, including across concurrent callers inside one millisecond.
type V7 struct {
	mu   sync.Mutex
	last uuid.UUID
}

// NewV7 returns a generator backed by the process clock.
func NewV7() *V7 {
	return &V7{}
}

// NewID returns the next UUID v7. Ids never repeat or regress within the
// process lifetime.
func (g *V7) NewID() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid v7: %w", err)
	}
	if g.last != uuid.Nil && bytes.Compare(id[:], g.last[:]) <= 0 {
		return uuid.Nil, fmt.Errorf("uuid v7 went backwards: %s after %s", id, g.last)
	}
	g.last = id
	return id, nil
}

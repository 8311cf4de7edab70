package ids

import (
	"bytes"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestNewIDVersion(t *testing.T) {
	g := NewV7()

	id, err := g.NewID()
	if err != nil {
		t.Fatalf("NewID() error: %v", err)
	}
	if id.Version() != 7 {
		t.Errorf("expected version 7, got %d", id.Version())
	}
	if id == uuid.Nil {
		t.Error("expected non-nil uuid")
	}
}

func TestNewIDMonotonic(t *testing.T) {
	g := NewV7()

	var prev uuid.UUID
	for i := 0; i < 1000; i++ {
		id, err := g.NewID()
		if err != nil {
			t.Fatalf("NewID() error at %d: %v", i, err)
		}
		if prev != uuid.Nil && bytes.Compare(id[:], prev[:]) <= 0 {
			t.Fatalf("id %s at index %d is not greater than previous %s", id, i, prev)
		}
		prev = id
	}
}

func TestNewIDConcurrent(t *testing.T) {
	g := NewV7()

	const goroutines = 8
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[uuid.UUID]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id, err := g.NewID()
				if err != nil {
					t.Errorf("NewID() error: %v", err)
					return
				}
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Errorf("expected %d unique ids, got %d", goroutines*perGoroutine, len(seen))
	}
}

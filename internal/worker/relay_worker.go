// Package worker hosts the background loops of the identity service. The
// only resident today is the outbox relay worker.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultIdleInterval is the poll cadence while the outbox is drained.
	DefaultIdleInterval = 5 * time.Second

	// DefaultBusyInterval is the cadence while a backlog is being worked off.
	DefaultBusyInterval = 200 * time.Millisecond

	// DefaultBatchSize is how many envelopes one tick leases.
	DefaultBatchSize = 50
)

// BatchProcessor is the relay surface the worker drives. It returns how many
// envelopes the batch leased.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, limit int) (int, error)
}

// RelayWorkerConfig tunes the polling loop.
type RelayWorkerConfig struct {
	IdleInterval time.Duration
	BusyInterval time.Duration
	BatchSize    int
}

// DefaultRelayWorkerConfig returns the standard poll cadence.
func DefaultRelayWorkerConfig() RelayWorkerConfig {
	return RelayWorkerConfig{
		IdleInterval: DefaultIdleInterval,
		BusyInterval: DefaultBusyInterval,
		BatchSize:    DefaultBatchSize,
	}
}

// RelayWorker polls the outbox on a two-speed cadence: a full batch means a
// backlog is likely, so the next poll comes quickly; a short batch or an
// error drops back to the idle interval.
type RelayWorker struct {
	relay  BatchProcessor
	config RelayWorkerConfig

	// Stats
	batchesProcessed   int64
	envelopesProcessed int64
	errors             int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewRelayWorker creates a relay worker around the given processor.
func NewRelayWorker(relay BatchProcessor, config RelayWorkerConfig) *RelayWorker {
	if config.IdleInterval <= 0 {
		config.IdleInterval = DefaultIdleInterval
	}
	if config.BusyInterval <= 0 {
		config.BusyInterval = DefaultBusyInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &RelayWorker{relay: relay, config: config}
}

// Start begins the polling loop.
func (w *RelayWorker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("relay worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	log.Printf("[OutboxRelay] Starting with batch size %d, idle interval %v",
		w.config.BatchSize, w.config.IdleInterval)

	w.wg.Add(1)
	go w.pollLoop()
	return nil
}

// Stop halts the loop and waits for the in-flight batch to finish.
func (w *RelayWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	log.Printf("[OutboxRelay] Stopping...")
	w.cancel()
	w.wg.Wait()
	log.Printf("[OutboxRelay] Stopped. Batches: %d, Envelopes: %d, Errors: %d",
		atomic.LoadInt64(&w.batchesProcessed),
		atomic.LoadInt64(&w.envelopesProcessed),
		atomic.LoadInt64(&w.errors))
}

// Stats reports loop counters for the health endpoint.
func (w *RelayWorker) Stats() map[string]int64 {
	return map[string]int64{
		"batches_processed":   atomic.LoadInt64(&w.batchesProcessed),
		"envelopes_processed": atomic.LoadInt64(&w.envelopesProcessed),
		"errors":              atomic.LoadInt64(&w.errors),
	}
}

func (w *RelayWorker) pollLoop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.config.BusyInterval)
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-timer.C:
			timer.Reset(w.tick())
		}
	}
}

// tick runs one batch and returns the delay until the next poll.
func (w *RelayWorker) tick() time.Duration {
	count, err := w.relay.ProcessBatch(w.ctx, w.config.BatchSize)
	if err != nil {
		if w.ctx.Err() != nil {
			return w.config.IdleInterval
		}
		atomic.AddInt64(&w.errors, 1)
		log.Printf("[OutboxRelay] Batch failed: %v", err)
		return w.config.IdleInterval
	}

	atomic.AddInt64(&w.batchesProcessed, 1)
	atomic.AddInt64(&w.envelopesProcessed, int64(count))

	if count == w.config.BatchSize {
		return w.config.BusyInterval
	}
	return w.config.IdleInterval
}

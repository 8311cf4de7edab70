package outbox

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// BackoffConfig parameterises the retry schedule.
type BackoffConfig struct {
	MaxRetries       int
	BaseFactor       float64
	MaxFactor        float64
	BaseDelaySeconds float64
	JitterMaxMillis  int64
}

// Validate rejects configurations the calculator cannot honour.
func (c BackoffConfig) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be >= 1, got %d", c.MaxRetries)
	}
	if c.BaseFactor < 1 {
		return fmt.Errorf("base_factor must be >= 1, got %g", c.BaseFactor)
	}
	if c.MaxFactor < 1 {
		return fmt.Errorf("max_factor must be >= 1, got %g", c.MaxFactor)
	}
	if c.BaseDelaySeconds <= 0 {
		return fmt.Errorf("base_delay_seconds must be > 0, got %g", c.BaseDelaySeconds)
	}
	if c.JitterMaxMillis <= 0 {
		return fmt.Errorf("jitter_max_millis must be > 0, got %d", c.JitterMaxMillis)
	}
	return nil
}

// Backoff computes when a failed envelope should next be attempted: capped
// exponential growth on the base delay, plus bounded uniform jitter so
// retries from one incident don't land on the same poll.
type Backoff struct {
	cfg BackoffConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff creates a calculator seeded from the wall clock.
func NewBackoff(cfg BackoffConfig) *Backoff {
	return NewBackoffWithRand(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewBackoffWithRand creates a calculator with an injected random source.
// Tests pass a seeded source to make the jitter deterministic.
func NewBackoffWithRand(cfg BackoffConfig, rng *rand.Rand) *Backoff {
	return &Backoff{cfg: cfg, rng: rng}
}

// MaxRetries returns the configured attempt cap.
func (b *Backoff) MaxRetries() int { return b.cfg.MaxRetries }

// Next schedules the attempt after a failure. retryCount is the number of
// failed attempts so far, including the one just recorded; the first failure
// passes 1. Returns ok=false when the retry budget is exhausted and the
// envelope must be retired as permanently failed.
func (b *Backoff) Next(retryCount int, lastFailedAt time.Time) (t time.Time, ok bool) {
	if retryCount >= b.cfg.MaxRetries {
		return time.Time{}, false
	}

	factor := math.Pow(b.cfg.BaseFactor, float64(retryCount-1))
	if factor > b.cfg.MaxFactor {
		factor = b.cfg.MaxFactor
	}
	delay := time.Duration(b.cfg.BaseDelaySeconds * factor * float64(time.Second))

	b.mu.Lock()
	jitter := time.Duration(b.rng.Int63n(b.cfg.JitterMaxMillis)) * time.Millisecond
	b.mu.Unlock()

	return lastFailedAt.Add(delay + jitter), true
}

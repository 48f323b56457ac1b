// Package verification provides the yes/no identity check consumed before
// completing login and before logout.
package verification

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

var ErrVerificationFailed = errors.New("face verification failed")

// Result describes a completed verification attempt.
type Result struct {
	Success    bool          `json:"success"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Oracle decides whether the person in front of the device is the session
// owner. Verify blocks until a decision or until ctx is done.
type Oracle interface {
	Verify(ctx context.Context) (Result, error)
}

const (
	DefaultScanDelay   = 2 * time.Second
	DefaultSuccessRate = 0.8
)

// RandomOracle simulates a face scan: a fixed delay followed by a weighted
// coin flip. It stands in for real biometric matching.
type RandomOracle struct {
	delay       time.Duration
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

type RandomOption func(*RandomOracle)

func WithDelay(d time.Duration) RandomOption {
	return func(o *RandomOracle) {
		o.delay = d
	}
}

func WithSuccessRate(rate float64) RandomOption {
	return func(o *RandomOracle) {
		if rate < 0 {
			rate = 0
		}
		if rate > 1 {
			rate = 1
		}
		o.successRate = rate
	}
}

// WithSeed makes the draw sequence reproducible.
func WithSeed(seed int64) RandomOption {
	return func(o *RandomOracle) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

func NewRandomOracle(opts ...RandomOption) *RandomOracle {
	o := &RandomOracle{
		delay:       DefaultScanDelay,
		successRate: DefaultSuccessRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Verify waits for the scan delay and draws the outcome. Cancelling ctx stops
// the timer and returns ctx.Err() without a draw.
func (o *RandomOracle) Verify(ctx context.Context) (Result, error) {
	start := time.Now()

	if o.delay > 0 {
		timer := time.NewTimer(o.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	o.mu.Lock()
	success := o.rng.Float64() < o.successRate
	o.mu.Unlock()

	res := Result{Success: success, Duration: time.Since(start), FinishedAt: time.Now()}
	if !success {
		return res, ErrVerificationFailed
	}
	return res, nil
}

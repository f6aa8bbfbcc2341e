// Package ratelimit paces outbound requests so scheduled checks do not
// hammer the stores being tracked.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter enforces a randomized delay between actions.
// Jitter keeps the request pattern from looking mechanical.
type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.nextDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	r.maxDelay = max
}

func (r *SimpleRateLimiter) nextDelay() time.Duration {
	if !r.jitter || r.maxDelay <= r.minDelay {
		return r.minDelay
	}

	span := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(rand.Int63n(int64(span)))
}

const (
	adaptiveFloor  = 1 * time.Second
	adaptiveMinCap = 60 * time.Second
	adaptiveMaxCap = 120 * time.Second
)

// AdaptiveRateLimiter tightens the delay while checks succeed and backs
// off when they start failing. A run of errors usually means the target
// site is throttling us, so slowing down is the only useful response.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	errorStreak   int
	successStreak int
	errorLimit    int
	backoffFactor float64
}

func NewAdaptiveRateLimiter(minDelay, maxDelay time.Duration) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: NewSimpleRateLimiter(minDelay, maxDelay),
		errorLimit:        3,
		backoffFactor:     1.5,
	}
}

// RecordSuccess shaves the minimum delay after a run of good checks,
// never dropping below the floor.
func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successStreak++
	a.errorStreak = 0

	if a.successStreak > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < adaptiveFloor {
			newMin = adaptiveFloor
		}
		a.minDelay = newMin
		a.successStreak = 0
	}
}

// RecordError widens the delay window once errors accumulate.
func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorStreak++
	a.successStreak = 0

	if a.errorStreak >= a.errorLimit {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > adaptiveMinCap {
			newMin = adaptiveMinCap
		}
		if newMax > adaptiveMaxCap {
			newMax = adaptiveMaxCap
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorStreak = 0
	}
}

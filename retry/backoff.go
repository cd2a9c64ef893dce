package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the delay after a failed attempt (zero-indexed).
type Backoff interface {
	Delay(attempt uint) time.Duration
}

// ExpBackoff grows the delay as Base * Factor^attempt, clamped to [Base, Max].
type ExpBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

func (b ExpBackoff) Delay(attempt uint) time.Duration {
	d := time.Duration(float64(b.Base) * math.Pow(b.Factor, float64(attempt)))

	switch {
	case d < b.Base:
		return b.Base
	case d > b.Max:
		return b.Max
	default:
		return d
	}
}

// Jitter is the share of each delay that is randomized: 0 keeps the delay,
// 1 picks uniformly in [0, delay). Negative values disable jitter.
type Jitter float64

const (
	FullJitter    Jitter = 1.0
	EqualJitter   Jitter = 0.5
	WithoutJitter Jitter = -1.0
)

func (j Jitter) apply(d time.Duration) time.Duration {
	if j <= 0 {
		return d
	}

	r := rand.Float64() * float64(d) //nolint:gosec // Jitter does not need crypto randomness

	if j < 1 {
		r = float64(j)*r + float64(1-j)*float64(d)
	}

	return time.Duration(r)
}

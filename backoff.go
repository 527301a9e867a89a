package notifybox

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	defaultBackoffBase   = 15 * time.Second
	defaultBackoffCap    = 30 * time.Minute
	defaultBackoffJitter = 5 * time.Second
	maxShift             = 62
)

// Backoff computes retry delays: min(Base*2^(attempt-1), Cap) plus uniform jitter in [0, Jitter].
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter time.Duration
	// Rand returns a uniform value in [0, n). Nil uses math/rand/v2.
	Rand func(n int64) int64
}

// DefaultBackoff returns the 15s base, 30m cap, 5s jitter policy.
func DefaultBackoff() Backoff {
	return Backoff{Base: defaultBackoffBase, Cap: defaultBackoffCap, Jitter: defaultBackoffJitter}
}

// Delay returns the wait before the next attempt after the given number of failed attempts.
func (b Backoff) Delay(attempts int) time.Duration {
	delay, jitter := b.Nominal(attempts), b.jitter()
	if delay > time.Duration(math.MaxInt64)-jitter {
		return time.Duration(math.MaxInt64)
	}

	return delay + jitter
}

// Nominal returns the capped exponential component of Delay, without jitter.
func (b Backoff) Nominal(attempts int) time.Duration {
	delay := exponential(b.Base, attempts-1)
	if b.Cap > 0 && delay > b.Cap {
		delay = b.Cap
	}

	return delay
}

func (b Backoff) jitter() time.Duration {
	if b.Jitter <= 0 {
		return 0
	}
	n := int64(b.Jitter) + 1
	if b.Rand != nil {
		return time.Duration(b.Rand(n))
	}

	return time.Duration(rand.Int64N(n)) // #nosec G404 -- jitter needs no cryptographic randomness
}

func exponential(base time.Duration, shift int) time.Duration {
	if base <= 0 {
		return 0
	}
	if shift < 0 {
		shift = 0
	} else if shift > maxShift {
		shift = maxShift
	}

	multiplier := int64(1) << shift
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}

	return base * time.Duration(multiplier)
}

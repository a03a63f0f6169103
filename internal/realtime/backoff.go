package realtime

import (
	"math"
	"math/rand"
	"time"
)

// backoff mirrors the default reconnection policy of socket.io clients:
// exponential from min to max with a symmetric random deviation.
type backoff struct {
	min      time.Duration
	max      time.Duration
	factor   float64
	jitter   float64
	attempts int
	rng      *rand.Rand
}

func newBackoff(base, ceiling time.Duration, jitter float64, rng *rand.Rand) *backoff {
	if base <= 0 {
		base = time.Second
	}
	if ceiling < base {
		ceiling = base
	}
	if jitter < 0 || jitter > 1 {
		jitter = 0.5
	}
	return &backoff{min: base, max: ceiling, factor: 2, jitter: jitter, rng: rng}
}

func (b *backoff) next() time.Duration {
	ms := float64(b.min) * math.Pow(b.factor, float64(b.attempts))
	b.attempts++
	if b.jitter > 0 {
		r := b.rng.Float64()
		deviation := math.Floor(r * b.jitter * ms)
		if int(math.Floor(r*10))&1 == 0 {
			ms -= deviation
		} else {
			ms += deviation
		}
	}
	if ms > float64(b.max) || ms <= 0 {
		return b.max
	}
	return time.Duration(ms)
}

func (b *backoff) reset() {
	b.attempts = 0
}

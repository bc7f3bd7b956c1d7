package delivery

import "time"

// Backoff returns the delay before the attempt after failed attempt
// number attempt (0-based): baseDelay * 2^attempt plus a random jitter in
// [0, maxJitter). rng must return a value in [0, 1); injecting it keeps the
// function deterministic under test.
func Backoff(attempt int, baseDelay, maxJitter time.Duration, rng func() float64) time.Duration {
	d := baseDelay << uint(attempt)
	if maxJitter > 0 && rng != nil {
		d += time.Duration(rng() * float64(maxJitter))
	}
	return d
}

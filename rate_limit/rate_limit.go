package rate_limit

import "time"

// Ratelimit describes the quota of one bucket, or of the global limiter.
// It carries no lock: the owner (a bucket or the global limiter) serializes access.
type Ratelimit struct {
	Limit     int           // Max requests in the window
	Remaining int           // Requests left in the current window, never negative
	Reset     time.Time     // When the current window closes
	Delay     time.Duration // Wait derived from the last update or 429
}

// Exhausted reports whether dispatch must wait: no requests left and the window still open
func (r *Ratelimit) Exhausted(now time.Time) bool {
	return r.Remaining <= 0 && now.Before(r.Reset)
}

// TimeUntilReset returns how long until the window closes, or 0 if it already has
func (r *Ratelimit) TimeUntilReset(now time.Time) time.Duration {
	if !now.Before(r.Reset) {
		return 0
	}
	return r.Reset.Sub(now)
}

// Consume takes one request out of the window. A window whose reset has passed is refilled
// to its limit first. Unknown windows (no limit learnt yet) stay at zero and never block.
func (r *Ratelimit) Consume(now time.Time) {
	if r.Limit > 0 && !now.Before(r.Reset) {
		r.Remaining = r.Limit
	}

	if r.Remaining > 0 {
		r.Remaining--
	}
}

// Block exhausts the window for d, as instructed by a 429
func (r *Ratelimit) Block(now time.Time, d time.Duration) {
	r.Remaining = 0
	r.Delay = d

	reset := now.Add(d)
	if reset.After(r.Reset) {
		r.Reset = reset
	}
}

// Apply copies the quota reported by the remote service. Missing fields leave the current
// values alone.
func (r *Ratelimit) Apply(now time.Time, h Headers) {
	if h.Limit >= 0 {
		r.Limit = h.Limit
	}
	if h.Remaining >= 0 {
		r.Remaining = h.Remaining
	}

	switch {
	case h.ResetAfter > 0:
		r.Reset = now.Add(h.ResetAfter)
	case !h.Reset.IsZero():
		r.Reset = h.Reset
	}

	r.Delay = r.TimeUntilReset(now)
	if r.Remaining < 0 {
		r.Remaining = 0
	}
}

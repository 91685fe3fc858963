// Package bandwidth implements the token-bucket admission gate bounding
// transmitted pixel-equivalents per unit time.
package bandwidth

import (
	"time"

	"github.com/rs/zerolog"

	"displayd/pkg/types"
)

// Limiter bounds admitted transmission cost, in pixel-equivalents, over a
// sliding window. Capacity is limit*window; every admitted region costs
// overhead + width*height, and that cost is returned to the bucket exactly
// window after admission. Tokens therefore never exceed limit*window and
// never go negative: a region that does not fit is deferred, not charged.
//
// Limiter is touched only by the producer context and needs no locking.
type Limiter struct {
	limit    float64       // pixels per second; 0 disables the limiter
	window   time.Duration // sliding window length
	capacity float64       // limit * window
	overhead int           // fixed per-admission cost in pixel-equivalents
	log      zerolog.Logger

	record []admission // admissions still inside the window, oldest first
	now    func() time.Time
}

type admission struct {
	at   time.Time
	cost float64
}

// New returns a limiter with the given refill rate (pixels/sec), window and
// fixed per-admission overhead. limit <= 0 disables limiting: Admit then
// always allows immediately.
func New(limit float64, window time.Duration, overhead int, log zerolog.Logger) *Limiter {
	return newLimiter(limit, window, overhead, log, time.Now)
}

func newLimiter(limit float64, window time.Duration, overhead int, log zerolog.Logger, now func() time.Time) *Limiter {
	return &Limiter{
		limit:    limit,
		window:   window,
		capacity: limit * window.Seconds(),
		overhead: overhead,
		log:      log,
		now:      now,
	}
}

// Enabled reports whether the limiter applies any bound.
func (l *Limiter) Enabled() bool { return l.limit > 0 }

// Cost returns the pixel-equivalent price of transmitting r.
func (l *Limiter) Cost(r types.Rect) float64 {
	return float64(l.overhead + r.Area())
}

// Admit charges the bucket for r if enough tokens are available and reports
// the outcome. When the region does not fit, ok is false and retry is the
// time until the oldest in-window admission expires and returns its tokens;
// the caller defers the region, it is never an error. A region costing more
// than the whole capacity is admitted whenever the bucket is full, draining
// it entirely, so oversized regions cannot starve forever.
func (l *Limiter) Admit(r types.Rect) (ok bool, retry time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	now := l.now()
	l.expire(now)

	cost := l.Cost(r)
	if cost > l.capacity {
		cost = l.capacity
	}
	if l.spent()+cost <= l.capacity {
		l.record = append(l.record, admission{at: now, cost: cost})
		return true, 0
	}

	retry = l.record[0].at.Add(l.window).Sub(now)
	l.log.Debug().
		Int("pixels", r.Area()).
		Dur("retry", retry).
		Msg("postponing region due to bandwidth limit")
	return false, retry
}

// Tokens returns the currently available pixel-equivalents. Diagnostic use.
func (l *Limiter) Tokens() float64 {
	if !l.Enabled() {
		return 0
	}
	l.expire(l.now())
	return l.capacity - l.spent()
}

func (l *Limiter) spent() float64 {
	var sum float64
	for _, a := range l.record {
		sum += a.cost
	}
	return sum
}

// expire drops admissions older than the window, returning their tokens.
func (l *Limiter) expire(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.record) && !l.record[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		l.record = append(l.record[:0], l.record[i:]...)
	}
}

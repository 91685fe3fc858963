// Package dispatch hands changed regions to the transmission callback,
// owning the double-buffering protocol and the chain of job handles that
// lets the callback serialize writes to a single-channel device.
package dispatch

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"displayd/pkg/types"
)

// Job is the handle of one in-flight transmission. The callback of the next
// dispatch receives the previous job's handle and may Wait on it to enforce
// FIFO delivery to the physical device. A dispatched job always runs to
// completion; there is no cancellation.
type Job struct {
	id   uuid.UUID
	done chan struct{}
}

// ID returns the job's unique identifier, for logging and correlation.
func (j *Job) ID() uuid.UUID { return j.id }

// Wait blocks until the transmission callback for this job has returned.
// Safe to call from any goroutine, any number of times. Wait on a nil job
// returns immediately, so callbacks can join their predecessor
// unconditionally.
func (j *Job) Wait() {
	if j == nil {
		return
	}
	<-j.done
}

// Done returns a channel closed when the job completes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Callback transmits one region to the device. It runs on its own goroutine
// per dispatch (when double buffering is on) and receives the previous
// job's handle; prev is nil for the first dispatch. Failures inside the
// callback are the callback owner's responsibility: the dispatcher neither
// retries nor intercepts them.
type Callback func(rect types.Rect, data []byte, fingerprint uint64, prev *Job)

// Dispatcher threads exactly one previous-job handle through consecutive
// dispatches. All Dispatch calls must come from the single producer context;
// only the spawned callbacks run concurrently.
type Dispatcher struct {
	cb              Callback
	doubleBuffering bool
	log             zerolog.Logger

	last *Job
}

// New returns a dispatcher invoking cb for every region. With
// doubleBuffering enabled the producer returns immediately after spawning
// the callback; disabled, Dispatch blocks until the previous transmission
// has completed before starting the next one, keeping a single in-flight
// buffer.
func New(cb Callback, doubleBuffering bool, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{cb: cb, doubleBuffering: doubleBuffering, log: log}
}

// Dispatch starts the transmission of one region and returns its handle.
// The region's data must not be mutated by the caller after this point; it
// is owned by the callback's goroutine.
func (d *Dispatcher) Dispatch(region types.Region) *Job {
	if !d.doubleBuffering {
		d.last.Wait()
	}
	job := &Job{id: uuid.New(), done: make(chan struct{})}
	prev := d.last
	d.last = job

	d.log.Debug().
		Stringer("job", job.id).
		Int("x", region.Rect.X).
		Int("y", region.Rect.Y).
		Int("w", region.Rect.W).
		Int("h", region.Rect.H).
		Uint64("fingerprint", region.Fingerprint).
		Msg("dispatching region")

	go func() {
		defer close(job.done)
		d.cb(region.Rect, region.Data, region.Fingerprint, prev)
	}()
	return job
}

// Flush blocks until the most recently dispatched job has completed. Used
// on teardown; it does not cancel anything.
func (d *Dispatcher) Flush() { d.last.Wait() }

// InFlight reports whether the most recent job has not completed yet.
func (d *Dispatcher) InFlight() bool {
	if d.last == nil {
		return false
	}
	select {
	case <-d.last.done:
		return false
	default:
		return true
	}
}

package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"displayd/pkg/types"
)

func region(n int) types.Region {
	return types.Region{
		Rect:        types.Rect{X: n, Y: 0, W: 1, H: 1},
		Data:        []byte{byte(n), 0, 0},
		Fingerprint: uint64(n),
	}
}

func TestJobChainSerializesDelivery(t *testing.T) {
	var mu sync.Mutex
	var order []int

	cb := func(rect types.Rect, data []byte, fp uint64, prev *Job) {
		// Stagger completion so later dispatches would overtake earlier
		// ones without the chain.
		time.Sleep(time.Duration(10-rect.X) * time.Millisecond)
		prev.Wait()
		mu.Lock()
		order = append(order, rect.X)
		mu.Unlock()
	}
	d := New(cb, true, zerolog.Nop())

	var last *Job
	for i := 0; i < 5; i++ {
		last = d.Dispatch(region(i))
	}
	last.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, x := range order {
		if x != i {
			t.Fatalf("delivery order %v not FIFO", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("expected 5 deliveries got %d", len(order))
	}
}

func TestFirstDispatchGetsNilPrev(t *testing.T) {
	got := make(chan *Job, 1)
	d := New(func(_ types.Rect, _ []byte, _ uint64, prev *Job) {
		got <- prev
	}, true, zerolog.Nop())
	d.Dispatch(region(0)).Wait()
	if prev := <-got; prev != nil {
		t.Fatalf("expected nil previous handle on first dispatch")
	}
}

func TestBlockingModeWaitsForPreviousJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	d := New(func(rect types.Rect, _ []byte, _ uint64, _ *Job) {
		started <- struct{}{}
		if rect.X == 0 {
			<-release
		}
	}, false, zerolog.Nop())

	d.Dispatch(region(0))
	<-started

	dispatched := make(chan struct{})
	go func() {
		d.Dispatch(region(1))
		close(dispatched)
	}()

	select {
	case <-dispatched:
		t.Fatalf("second dispatch returned while first still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-dispatched:
	case <-time.After(time.Second):
		t.Fatalf("second dispatch never proceeded")
	}
	d.Flush()
}

func TestDoubleBufferingDoesNotBlockProducer(t *testing.T) {
	release := make(chan struct{})
	d := New(func(_ types.Rect, _ []byte, _ uint64, prev *Job) {
		prev.Wait()
		<-release
	}, true, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		d.Dispatch(region(0))
		d.Dispatch(region(1))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("producer blocked despite double buffering")
	}
	if !d.InFlight() {
		t.Fatalf("expected jobs in flight")
	}
	close(release)
	d.Flush()
	if d.InFlight() {
		t.Fatalf("expected no jobs in flight after flush")
	}
}

func TestWaitOnNilJobReturns(t *testing.T) {
	var j *Job
	j.Wait() // must not panic or block
}

func TestJobIDsAreUnique(t *testing.T) {
	d := New(func(_ types.Rect, _ []byte, _ uint64, _ *Job) {}, true, zerolog.Nop())
	a := d.Dispatch(region(0))
	b := d.Dispatch(region(1))
	b.Wait()
	if a.ID() == b.ID() {
		t.Fatalf("job ids must be unique")
	}
}

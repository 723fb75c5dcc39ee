package subdoc

import (
	"sync"
	"time"
)

// throttle runs fn at most once per interval on the trailing edge of a burst
// of requests. Runs never overlap: a request made while fn is running is
// owed and scheduled once the current run returns.
type throttle struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	idle    *sync.Cond
	timer   *time.Timer
	gen     uint64
	running bool
	owed    bool
	stopped bool
}

func newThrottle(interval time.Duration, fn func()) *throttle {
	t := &throttle{interval: interval, fn: fn}
	t.idle = sync.NewCond(&t.mu)
	return t
}

// Request schedules a run.
func (t *throttle) Request() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.running {
		t.owed = true
		return
	}
	if t.timer == nil {
		t.armLocked()
	}
}

func (t *throttle) armLocked() {
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.interval, func() { t.fire(gen) })
}

func (t *throttle) fire(gen uint64) {
	t.mu.Lock()
	if t.stopped || t.running || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.running = true
	t.mu.Unlock()
	t.run()
}

func (t *throttle) run() {
	t.fn()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if t.owed && !t.stopped {
		t.owed = false
		t.armLocked()
	}
	t.idle.Broadcast()
}

// Flush waits for a run in progress and then runs any pending request
// immediately on the calling goroutine.
func (t *throttle) Flush() {
	t.mu.Lock()
	for t.running {
		t.idle.Wait()
	}
	pending := t.timer != nil || t.owed
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.owed = false
	if t.stopped || !pending {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()
	t.run()
}

// Pending reports whether a run is scheduled or in progress.
func (t *throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil || t.running || t.owed
}

// Stop cancels pending runs. It does not wait for a run in progress, so it
// may be called from fn itself.
func (t *throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.owed = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

package query

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid successive submissions so only the last one
// within the delay window runs. Submissions carry an identity token; a run
// whose identity was superseded before it fired is dropped, so last-write
// wins by input identity rather than by completion time.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewDebouncer creates a debouncer with the given delay. A zero delay still
// defers work to its own goroutine but never drops the latest submission.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Submit schedules fn to run after the delay, replacing any pending
// submission. fn receives a check that reports whether this submission is
// still current; long-running work should consult it before publishing
// results.
func (d *Debouncer) Submit(fn func(isCurrent func() bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	submitted := d.seq
	isCurrent := func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.seq == submitted
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		if !isCurrent() {
			return
		}
		fn(isCurrent)
	})
}

// Stop cancels any pending submission.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

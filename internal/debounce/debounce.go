// Package debounce coalesces rapid repeated triggers into single runs.
package debounce

import "sync"

// Debouncer coalesces triggers: while a run is in flight, any number of
// further triggers collapse into exactly one follow-up run. The follow-up
// executes the latest function and reads whatever state exists when it
// runs, which is how callers converge on the newest trigger.
type Debouncer struct {
	mu      sync.Mutex
	next    func()
	running bool
}

// Invoke runs fn on a background goroutine, or schedules it as the
// follow-up of the run currently in flight.
func (d *Debouncer) Invoke(fn func()) {
	d.mu.Lock()
	if d.running {
		d.next = fn
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()
	go d.loop(fn)
}

func (d *Debouncer) loop(fn func()) {
	for {
		fn()

		d.mu.Lock()
		fn = d.next
		d.next = nil
		if fn == nil {
			d.running = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

package query

import (
	"sync"
	"time"
)

// SearchDebounce is the quiet period before typed search text is committed.
const SearchDebounce = 350 * time.Millisecond

// Debouncer commits the latest pushed value once input has been quiet for the
// configured delay.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	commit  func(string)
	timer   *time.Timer
	pending string
	armed   bool

	// gen identifies the latest Push; timers of earlier pushes do nothing.
	gen uint64
}

// NewDebouncer constructs a Debouncer.
func NewDebouncer(delay time.Duration, commit func(string)) *Debouncer {
	return &Debouncer{delay: delay, commit: commit}
}

// Push records a new value and restarts the quiet period.
func (d *Debouncer) Push(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = value
	d.armed = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush commits a pending value immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Stop discards a pending value.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	value := d.pending
	d.armed = false
	d.mu.Unlock()
	d.commit(value)
}

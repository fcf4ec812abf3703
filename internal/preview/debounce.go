package preview

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Renderer turns ZPL text into an image.
type Renderer interface {
	Render(ctx context.Context, zpl string) ([]byte, error)
}

// Result is a finished preview. Generation identifies the trigger it answers.
type Result struct {
	Generation uint64
	Image      []byte
	Err        error
}

// Debouncer collapses bursts of preview triggers into one render of the
// latest text. It keeps a single pending slot: each Trigger cancels the
// pending timer and any in-flight render, then schedules a new one. Results
// of superseded generations are dropped, never delivered.
type Debouncer struct {
	renderer Renderer
	delay    time.Duration
	deliver  func(Result)

	mu      sync.Mutex
	gen     uint64
	pending string
	timer   *time.Timer
	cancel  context.CancelFunc
	closed  bool
}

// NewDebouncer creates a debouncer that waits delay after the last trigger
// and hands results to deliver. deliver runs on the render goroutine.
func NewDebouncer(r Renderer, delay time.Duration, deliver func(Result)) *Debouncer {
	return &Debouncer{
		renderer: r,
		delay:    delay,
		deliver:  deliver,
	}
}

// Trigger schedules a render of zpl and returns its generation.
func (d *Debouncer) Trigger(zpl string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.gen
	}
	d.supersedeLocked()
	d.gen++
	d.pending = zpl
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
	return gen
}

// Flush renders the pending trigger now, on the calling goroutine. It is a
// no-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer == nil || !d.timer.Stop() {
		d.mu.Unlock()
		return
	}
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Close cancels pending and in-flight work. Later triggers are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersedeLocked()
	d.closed = true
}

// Generation returns the latest trigger generation.
func (d *Debouncer) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

func (d *Debouncer) supersedeLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.timer = nil
	zpl := d.pending
	d.mu.Unlock()

	img, err := d.renderer.Render(ctx, zpl)
	cancel()

	d.mu.Lock()
	current := !d.closed && gen == d.gen
	d.mu.Unlock()
	if !current {
		log.Debug().Uint64("generation", gen).Msg("Dropping superseded preview")
		return
	}
	d.deliver(Result{Generation: gen, Image: img, Err: err})
}

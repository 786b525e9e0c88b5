package coach

import (
	"context"
	"sync"
	"time"

	"github.com/claude/freecoach/internal/models"
)

type result struct {
	s   models.Suggestion
	err error
}

type pending struct {
	timer   *time.Timer
	fn      func() (models.Suggestion, error)
	waiters []chan result
}

// Debouncer collapses bursts of calls per key. Each call restarts the quiet
// period; when it elapses only the most recent fn runs, and every caller in
// the burst receives its result.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pending
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, pending: make(map[string]*pending)}
}

// Do schedules fn under key and waits for the burst's result. A non-positive
// delay runs fn immediately.
func (d *Debouncer) Do(ctx context.Context, key string, fn func() (models.Suggestion, error)) (models.Suggestion, error) {
	if d.delay <= 0 {
		return fn()
	}

	ch := make(chan result, 1)

	d.mu.Lock()
	p, ok := d.pending[key]
	// A timer that can't be stopped is already firing; start a new burst.
	if ok && p.timer.Stop() {
		p.fn = fn
		p.waiters = append(p.waiters, ch)
		p.timer.Reset(d.delay)
	} else {
		p = &pending{fn: fn, waiters: []chan result{ch}}
		d.pending[key] = p
		p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	}
	d.mu.Unlock()

	select {
	case r := <-ch:
		return r.s, r.err
	case <-ctx.Done():
		return models.Suggestion{}, ctx.Err()
	}
}

func (d *Debouncer) fire(key string, p *pending) {
	d.mu.Lock()
	if d.pending[key] == p {
		delete(d.pending, key)
	}
	fn, waiters := p.fn, p.waiters
	d.mu.Unlock()

	s, err := fn()
	for _, ch := range waiters {
		ch <- result{s, err}
	}
}

// internal/poller/loop.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// ---- LOOP CLOCK ----

// loopClock hands out timers whose callbacks run on the poller loop.
type loopClock struct{ p *Poller }

func (c loopClock) NewTimer(f func()) battery.Timer {
	return &loopTimer{p: c.p, f: f}
}

// loopTimer is touched only from the loop. Every Reset or Stop bumps
// the generation; a firing whose generation is stale is dropped.
type loopTimer struct {
	p   *Poller
	f   func()
	gen uint64
	t   *time.Timer
}

func (lt *loopTimer) Reset(d time.Duration) {
	lt.Stop()
	gen := lt.gen
	lt.t = time.AfterFunc(d, func() {
		lt.p.post(func() {
			if gen == lt.gen {
				lt.f()
			}
		})
	})
}

func (lt *loopTimer) Stop() {
	lt.gen++
	if lt.t != nil {
		lt.t.Stop()
		lt.t = nil
	}
}

// ---- ASYNC BUS ----

// asyncBus runs each transaction on a helper goroutine and posts the
// completion back to the loop.
type asyncBus struct {
	p  *Poller
	tr smbus.Transport
}

func (b asyncBus) Submit(t *smbus.Transaction) {
	tx := t.Request()
	ctx := b.p.runCtx

	b.p.helpers.Add(1)
	go func() {
		defer b.p.helpers.Done()
		b.tr.Do(ctx, &tx)
		b.p.post(func() { b.p.sched.Complete(&tx) })
	}()
}

// post queues f on the loop. It is dropped once the loop has exited.
func (p *Poller) post(f func()) {
	select {
	case p.events <- f:
	case <-p.done:
	}
}

// call runs f on the loop and waits for it.
func (p *Poller) call(ctx context.Context, f func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		f()
		close(ran)
	}

	select {
	case p.events <- wrapped:
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

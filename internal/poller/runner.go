// internal/poller/runner.go
package poller

import (
	"context"
	"errors"
	"sync"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
)

// Run starts the battery loop and forwards the latest snapshot to out
// until ctx is done. out may be nil. A poller runs at most once.
func (p *Poller) Run(ctx context.Context, out chan<- Update) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("poller: already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.runCtx = ctx

	var wg sync.WaitGroup
	if out != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.forward(ctx, out)
		}()
	}

	p.log.Info().Msg("battery poller started")
	p.sched.Start()

	for {
		select {
		case <-ctx.Done():
			p.sched.Stop()
			close(p.done)
			p.helpers.Wait()
			wg.Wait()
			p.log.Info().Msg("battery poller stopped")
			return nil

		case f := <-p.events:
			f()
		}
	}
}

// forward drains the mailbox. Slow consumers only ever see the newest
// snapshot.
func (p *Poller) forward(ctx context.Context, out chan<- Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.mailbox:
			u := p.latest.Load()
			if u == nil {
				continue
			}
			select {
			case out <- *u:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ReadOnce runs the poller until its first read cycle finishes and
// returns the resulting snapshot. The poller cannot be reused.
func (p *Poller) ReadOnce(ctx context.Context) (battery.Snapshot, battery.CycleResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, nil) }()

	var res battery.CycleResult
	select {
	case res = <-p.cycles:
	case err := <-errc:
		if err == nil {
			err = ctx.Err()
		}
		return battery.Snapshot{}, 0, err
	}

	cancel()
	if err := <-errc; err != nil {
		return battery.Snapshot{}, res, err
	}

	u, _ := p.Latest()
	return u.Snapshot, res, nil
}

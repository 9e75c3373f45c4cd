// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// ErrStopped is returned by lifecycle calls once the loop has exited.
var ErrStopped = errors.New("poller: stopped")

// Config is the runtime config of one battery poller.
type Config struct {
	BatteryID string
	Transport smbus.Transport

	Addresses battery.Addresses
	Policy    battery.PolicyConfig

	// Optional collaborators. They run on the loop and must not block.
	Sinks     []battery.Sink
	PowerRoot battery.PowerRoot
	Manager   battery.Manager
	Observer  battery.Observer

	Logger zerolog.Logger

	// Sleep blocks between retries. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Poller owns one battery: a single loop goroutine runs the scheduler,
// its timers and every transaction completion.
type Poller struct {
	id    string
	log   zerolog.Logger
	sinks []battery.Sink
	obs   battery.Observer
	sched *battery.Scheduler

	events chan func()
	done   chan struct{}

	started atomic.Bool
	runCtx  context.Context
	helpers sync.WaitGroup

	latest  atomic.Pointer[Update]
	mailbox chan struct{}
	cycles  chan battery.CycleResult
}

// New creates a poller. Nothing runs until Run.
func New(cfg Config) (*Poller, error) {
	if cfg.BatteryID == "" {
		return nil, errors.New("poller: battery id required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("poller: transport required")
	}

	p := &Poller{
		id:      cfg.BatteryID,
		log:     cfg.Logger,
		sinks:   cfg.Sinks,
		obs:     cfg.Observer,
		events:  make(chan func()),
		done:    make(chan struct{}),
		mailbox: make(chan struct{}, 1),
		cycles:  make(chan battery.CycleResult, 1),
	}

	sched, err := battery.New(battery.Config{
		Addresses: cfg.Addresses,
		Policy:    cfg.Policy,
		Bus:       asyncBus{p: p, tr: cfg.Transport},
		Clock:     loopClock{p: p},
		Sink:      publisher{p},
		PowerRoot: cfg.PowerRoot,
		Manager:   cfg.Manager,
		Observer:  cycleWatch{p},
		Logger:    cfg.Logger,
		Sleep:     cfg.Sleep,
	})
	if err != nil {
		return nil, err
	}
	p.sched = sched
	return p, nil
}

// ID returns the battery id.
func (p *Poller) ID() string { return p.id }

// Latest returns the most recently published snapshot.
func (p *Poller) Latest() (Update, bool) {
	u := p.latest.Load()
	if u == nil {
		return Update{}, false
	}
	return *u, true
}

// ---- LIFECYCLE EVENTS ----

// Each call blocks until the loop has run it, the loop exits, or ctx
// is done. Calls made before Run wait for it.

func (p *Poller) BatteryInserted(ctx context.Context) error {
	return p.call(ctx, p.sched.BatteryInserted)
}

func (p *Poller) BatteryRemoved(ctx context.Context) error {
	return p.call(ctx, p.sched.BatteryRemoved)
}

func (p *Poller) SetInflowDisabled(ctx context.Context, disabled bool) error {
	return p.call(ctx, func() { p.sched.SetInflowDisabled(disabled) })
}

func (p *Poller) SetChargeInhibited(ctx context.Context, inhibited bool) error {
	return p.call(ctx, func() { p.sched.SetChargeInhibited(inhibited) })
}

func (p *Poller) SetUserClientStalled(ctx context.Context, stalled bool) error {
	return p.call(ctx, func() { p.sched.SetUserClientStalled(stalled) })
}

// SetPollingInterval reports false when the interval was ignored.
func (p *Poller) SetPollingInterval(ctx context.Context, d time.Duration) (bool, error) {
	var applied bool
	err := p.call(ctx, func() { applied = p.sched.SetPollingInterval(d) })
	return applied, err
}

// ---- SINK / OBSERVER ADAPTERS ----

// publisher fans a snapshot out to the extra sinks and drops it into
// the latest-value mailbox.
type publisher struct{ p *Poller }

func (pb publisher) Publish(s battery.Snapshot) {
	for _, sk := range pb.p.sinks {
		sk.Publish(s)
	}

	u := &Update{BatteryID: pb.p.id, At: time.Now(), Snapshot: s.Clone()}
	pb.p.latest.Store(u)

	select {
	case pb.p.mailbox <- struct{}{}:
	default:
	}
}

// cycleWatch forwards observer events and records finished cycles.
type cycleWatch struct{ p *Poller }

func (w cycleWatch) Retry(cmd uint8, s smbus.Status) {
	if w.p.obs != nil {
		w.p.obs.Retry(cmd, s)
	}
}

func (w cycleWatch) Exhausted(cmd uint8, s smbus.Status) {
	if w.p.obs != nil {
		w.p.obs.Exhausted(cmd, s)
	}
}

func (w cycleWatch) NonRecoverable(cmd uint8, s smbus.Status) {
	if w.p.obs != nil {
		w.p.obs.NonRecoverable(cmd, s)
	}
}

func (w cycleWatch) DeadlineExpired() {
	if w.p.obs != nil {
		w.p.obs.DeadlineExpired()
	}
}

func (w cycleWatch) CycleFinished(r battery.CycleResult) {
	if w.p.obs != nil {
		w.p.obs.CycleFinished(r)
	}
	select {
	case w.p.cycles <- r:
	default:
	}
}

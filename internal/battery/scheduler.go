// internal/battery/scheduler.go
package battery

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/smartbattery-poller/internal/smbus"
	"github.com/tamzrod/smartbattery-poller/internal/transact"
)

// Config wires one battery.
type Config struct {
	Addresses Addresses
	Policy    PolicyConfig

	Bus   transact.Bus
	Clock Clock

	// Optional collaborators.
	Sink      Sink
	PowerRoot PowerRoot
	Manager   Manager
	Observer  Observer

	Logger zerolog.Logger

	// Sleep blocks between retries. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Scheduler owns the periodic and deadline timers of one battery and
// drives its Machine. Every method must run on the battery's
// execution context.
type Scheduler struct {
	log    zerolog.Logger
	m      *Machine
	policy *Policy
	obs    Observer

	pollTimer     Timer
	deadlineTimer Timer

	restartsLeft int
	stalled      bool
}

// New builds a scheduler and its machine. Nothing runs until Start.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Bus == nil {
		return nil, errors.New("battery: bus required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("battery: clock required")
	}
	addrs := cfg.Addresses
	if addrs.Manager == 0 && addrs.Battery == 0 {
		addrs = DefaultAddresses
	}
	if addrs.Manager > 0x7F || addrs.Battery > 0x7F {
		return nil, errors.New("battery: address exceeds 7 bits")
	}
	if addrs.Manager == addrs.Battery {
		return nil, errors.New("battery: manager and battery share an address")
	}

	s := &Scheduler{
		log:    cfg.Logger,
		policy: NewPolicy(cfg.Policy),
		obs:    cfg.Observer,
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	s.restartsLeft = s.policy.MaxDeadlineRestarts

	m := &Machine{
		log:    cfg.Logger,
		addrs:  addrs,
		sink:   cfg.Sink,
		power:  cfg.PowerRoot,
		mgr:    cfg.Manager,
		obs:    s.obs,
		policy: s.policy,
		hooks:  s,
	}
	if m.sink == nil {
		m.sink = nopSink{}
	}
	if m.power == nil {
		m.power = nopPowerRoot{}
	}
	if m.mgr == nil {
		m.mgr = inflowCanceller{m}
	}
	m.drv = transact.New(transact.Config{
		Bus:      cfg.Bus,
		Logger:   cfg.Logger,
		Observer: driverEvents{m},
		Sleep:    cfg.Sleep,
	})
	s.m = m

	s.pollTimer = cfg.Clock.NewTimer(s.pollTimeout)
	s.deadlineTimer = cfg.Clock.NewTimer(s.deadlineExpired)
	return s, nil
}

// Machine exposes the read sequencer.
func (s *Scheduler) Machine() *Machine { return s.m }

// Policy exposes the polling policy.
func (s *Scheduler) Policy() *Policy { return s.policy }

// Snapshot returns a copy of the current snapshot.
func (s *Scheduler) Snapshot() Snapshot { return s.m.Snapshot() }

// Stalled reports whether polling is halted by a user client.
func (s *Scheduler) Stalled() bool { return s.stalled }

// ---- LIFECYCLE ----

// Start zeroes the snapshot and kicks off a full read.
func (s *Scheduler) Start() {
	s.m.snap.clear()
	s.m.publish()
	s.Poll(PathNew)
}

// Stop halts both timers. An outstanding transaction is left to finish
// and its completion is dropped by the caller.
func (s *Scheduler) Stop() {
	s.pollTimer.Stop()
	s.deadlineTimer.Stop()
	s.m.cancel()
}

// Poll requests a cycle. It reports false while stalled.
func (s *Scheduler) Poll(p Path) bool {
	if s.stalled {
		s.log.Debug().Stringer("path", p).Msg("poll refused; stalled by user client")
		return false
	}
	s.m.poll(p)
	return true
}

// Complete feeds a transport completion into the machine.
func (s *Scheduler) Complete(t *smbus.Transaction) {
	s.m.complete(t)
}

// BatteryInserted re-reads everything including identity.
func (s *Scheduler) BatteryInserted() {
	s.log.Info().Msg("battery inserted")
	s.Poll(PathNew)
}

// BatteryRemoved aborts any cycle and clears the snapshot.
func (s *Scheduler) BatteryRemoved() {
	s.log.Info().Msg("battery removed")
	if s.m.cyc.active {
		s.m.cancel()
		s.pollTimer.Stop()
		s.deadlineTimer.Stop()
	}
	s.m.snap.clear()
	s.m.publish()
}

// SetInflowDisabled records the inflow override and refreshes.
func (s *Scheduler) SetInflowDisabled(disabled bool) {
	s.m.inflowDisabled = disabled
	s.Poll(PathExisting)
}

// SetChargeInhibited records the charge override and refreshes.
func (s *Scheduler) SetChargeInhibited(inhibited bool) {
	s.m.chargeInhibited = inhibited
	s.Poll(PathExisting)
}

// SetUserClientStalled halts or resumes all bus activity.
func (s *Scheduler) SetUserClientStalled(stalled bool) {
	if stalled {
		s.log.Warn().Msg("stalled by user client; halting")
		s.stalled = true
		s.pollTimer.Stop()
		if s.m.cyc.active {
			s.m.cancel()
			s.deadlineTimer.Stop()
		}
		s.m.snap.Diagnostics.UserClientStalled = true
		s.m.publish()
		return
	}

	s.log.Info().Msg("user client stall cleared; resuming")
	s.stalled = false
	s.m.snap.Diagnostics.UserClientStalled = false
	s.m.publish()
	s.Poll(PathNew)
}

// SetPollingInterval replaces the normal interval. Ignored under
// override.
func (s *Scheduler) SetPollingInterval(d time.Duration) bool {
	if !s.policy.SetNormal(d) {
		s.log.Debug().Dur("interval", d).Msg("polling interval change ignored")
		return false
	}
	s.log.Info().Dur("interval", d).Msg("polling interval changed")
	return true
}

// ---- TIMERS ----

func (s *Scheduler) pollTimeout() {
	if s.m.cyc.active {
		return
	}
	s.Poll(PathExisting)
}

func (s *Scheduler) deadlineExpired() {
	if !s.m.cyc.active {
		return
	}
	s.m.recordError(ErrorOverallTimeoutExpired, 0, smbus.StatusOK)
	s.m.publish()
	s.log.Warn().
		Stringer("state", s.m.cyc.state).
		Int("restarts_left", s.restartsLeft).
		Msg("overall read timeout expired")
	s.obs.DeadlineExpired()

	if s.restartsLeft <= 0 {
		s.log.Error().Msg("deadline restart budget spent")
		return
	}
	s.restartsLeft--
	if s.Poll(PathNew) && s.m.cyc.active {
		s.deadlineTimer.Reset(s.policy.ReadDeadline)
	}
}

// ---- MACHINE HOOKS ----

func (s *Scheduler) cycleStarted() {
	s.pollTimer.Stop()
	s.deadlineTimer.Reset(s.policy.ReadDeadline)
}

func (s *Scheduler) cycleFinished(r CycleResult) {
	s.deadlineTimer.Stop()
	s.obs.CycleFinished(r)

	if r != CycleComplete {
		return
	}
	s.restartsLeft = s.policy.MaxDeadlineRestarts

	if s.policy.Continuous() {
		s.Poll(PathNew)
		return
	}

	snap := &s.m.snap
	if s.policy.Booting() ||
		!snap.ACConnected ||
		(!snap.FullyCharged && snap.Present) ||
		s.policy.Overridden() {
		s.policy.consumeBoot()
		s.pollTimer.Reset(s.policy.Interval())
		return
	}
	s.log.Debug().Msg("fully charged on ac; letting poll timer expire")
}

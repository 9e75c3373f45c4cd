// internal/battery/machine.go
package battery

import (
	"github.com/rs/zerolog"

	"github.com/tamzrod/smartbattery-poller/internal/retry"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
	"github.com/tamzrod/smartbattery-poller/internal/transact"
)

// cycleHooks connects the machine to its scheduler.
type cycleHooks interface {
	cycleStarted()
	cycleFinished(r CycleResult)
}

// cycle is the in-flight read sequence.
type cycle struct {
	active bool
	path   Path
	state  State

	cancel     bool
	reboot     bool
	rebootPath Path

	cells []uint16
}

// Machine sequences the register reads of one cycle and owns the
// snapshot. It is not safe for concurrent use.
type Machine struct {
	log   zerolog.Logger
	addrs Addresses
	drv   *transact.Driver

	sink   Sink
	power  PowerRoot
	mgr    Manager
	obs    Observer
	policy *Policy
	hooks  cycleHooks

	snap Snapshot
	cyc  cycle

	inflowDisabled  bool
	chargeInhibited bool
}

// State returns the current state.
func (m *Machine) State() State { return m.cyc.state }

// Active reports whether a cycle is outstanding.
func (m *Machine) Active() bool { return m.cyc.active }

// Path returns the entry mode of the current or last cycle.
func (m *Machine) Path() Path { return m.cyc.path }

// Snapshot returns a copy of the current snapshot.
func (m *Machine) Snapshot() Snapshot { return m.snap.Clone() }

// ---- CYCLE CONTROL ----

// poll starts a cycle, or marks the active one for restart.
func (m *Machine) poll(p Path) {
	if m.cyc.active {
		if !m.cyc.reboot || p == PathNew {
			m.cyc.rebootPath = p
		}
		m.cyc.reboot = true
		m.cyc.cancel = false
		m.log.Debug().
			Stringer("path", m.cyc.rebootPath).
			Stringer("state", m.cyc.state).
			Msg("restart requested during cycle")
		return
	}
	m.begin(p)
}

// cancel aborts the active cycle at its next completion.
func (m *Machine) cancel() {
	if !m.cyc.active {
		return
	}
	m.cyc.cancel = true
	m.cyc.reboot = false
}

func (m *Machine) begin(p Path) {
	m.cyc = cycle{active: true, path: p}
	m.log.Debug().Stringer("path", p).Msg("starting cycle")
	m.advance(StateStart)
}

// advance enters s and runs forward through states that need no bus
// access until a read is issued or the cycle ends.
func (m *Machine) advance(s State) {
	for {
		m.cyc.state = s

		if s == StateStart {
			m.cyc.cells = nil
			m.hooks.cycleStarted()
		}
		if s.Terminal() {
			m.finish(s)
			return
		}
		if f, ok := FieldFor(s, m.addrs); ok {
			m.drv.Issue(f.Address, f.Command, f.Protocol)
			return
		}
		s = Transition(s, m.cyc.path, OutcomeNext)
	}
}

// complete handles one transport completion.
func (m *Machine) complete(t *smbus.Transaction) {
	if !m.cyc.active {
		m.log.Debug().
			Uint8("cmd", t.Command).
			Msg("completion without active cycle ignored")
		return
	}

	if m.cyc.cancel {
		m.cyc.cancel = false
		m.cyc.active = false
		m.drv.Abandon()
		m.log.Debug().Stringer("state", m.cyc.state).Msg("cycle cancelled")
		m.hooks.cycleFinished(CycleCancelled)
		return
	}

	if m.cyc.reboot {
		p := m.cyc.rebootPath
		m.drv.Abandon()
		m.log.Debug().
			Stringer("state", m.cyc.state).
			Stringer("path", p).
			Msg("restarting cycle")
		m.begin(p)
		return
	}

	f, ok := FieldFor(m.cyc.state, m.addrs)
	if !ok || f.Address != t.Address || f.Command != t.Command {
		m.log.Warn().
			Stringer("state", m.cyc.state).
			Uint8("addr", t.Address).
			Uint8("cmd", t.Command).
			Msg("completion does not match state; ignored")
		return
	}

	absurd := t.Status == smbus.StatusOK &&
		t.Address == m.addrs.Battery &&
		retry.AbsurdZero(t.Command, t.Word(), m.snap.FullyDischarged)

	res, done := m.drv.Complete(t, absurd)
	if !done {
		return
	}

	state := m.cyc.state
	outcome, mutated := m.apply(state, res)
	if outcome == OutcomeNext && mutated {
		m.publish()
	}
	m.advance(Transition(state, m.cyc.path, outcome))
}

func (m *Machine) finish(s State) {
	var r CycleResult

	switch s {
	case StateTerminal:
		m.snap.Diagnostics.PermanentFailure = false
		m.snap.rebuildLegacy()
		r = CycleComplete
	case StateAbsent:
		m.log.Info().Msg("battery not present")
		m.snap.clear()
		r = CycleAbsent
	case StateRemoved:
		// Cleared like a removal, but the failure marker stays up
		// until a removal or a cycle that reaches Terminal.
		m.snap.clear()
		m.snap.Diagnostics.PermanentFailure = true
		r = CycleRemoved
	}

	m.publish()
	m.cyc.active = false
	m.hooks.cycleFinished(r)
}

func (m *Machine) publish() {
	m.sink.Publish(m.snap.Clone())
}

// recordError notes a read error in the diagnostics.
func (m *Machine) recordError(kind string, cmd uint8, s smbus.Status) {
	d := &m.snap.Diagnostics
	d.LatestErrorType = kind
	d.LastReadError = uint8(s)
	d.LastReadErrorCmd = cmd

	switch kind {
	case ErrorRetryAttemptsExceeded:
		d.Errors.RetryExhausted++
	case ErrorNonRecoverableStatus:
		d.Errors.NonRecoverable++
	case ErrorZeroCapacity:
		d.Errors.ZeroCapacity++
	case ErrorOverallTimeoutExpired:
		d.Errors.OverallTimeout++
	case ErrorPermanentFailure:
		d.Errors.PermanentFailure++
	}
}

// ---- DRIVER OBSERVER ----

// driverEvents feeds retry accounting into the diagnostics.
type driverEvents struct{ m *Machine }

func (e driverEvents) Retry(cmd uint8, s smbus.Status) {
	e.m.obs.Retry(cmd, s)
}

func (e driverEvents) Exhausted(cmd uint8, s smbus.Status) {
	e.m.recordError(ErrorRetryAttemptsExceeded, cmd, s)
	e.m.obs.Exhausted(cmd, s)
}

func (e driverEvents) NonRecoverable(cmd uint8, s smbus.Status) {
	e.m.recordError(ErrorNonRecoverableStatus, cmd, s)
	e.m.obs.NonRecoverable(cmd, s)
}

// inflowCanceller is the default Manager: a full discharge cancels
// inflow disable.
type inflowCanceller struct{ m *Machine }

func (c inflowCanceller) HandleFullDischarge() {
	if c.m.inflowDisabled {
		c.m.log.Info().Msg("fully discharged; inflow disable cancelled")
	}
	c.m.inflowDisabled = false
}

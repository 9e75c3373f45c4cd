// internal/battery/sink.go
package battery

import (
	"time"

	"github.com/tamzrod/smartbattery-poller/internal/smbus"
	"github.com/tamzrod/smartbattery-poller/internal/transact"
)

// Sink receives the whole snapshot after every mutating state.
// Publish runs on the battery's execution context and must not block.
type Sink interface {
	Publish(s Snapshot)
}

// PowerRoot is told when the published AC state changes.
type PowerRoot interface {
	ACChanged(connected bool)
}

// Manager is the battery manager collaborator.
type Manager interface {
	// HandleFullDischarge runs on the rising edge of fully discharged.
	HandleFullDischarge()
}

// CycleResult is how a read cycle ended.
type CycleResult uint8

const (
	CycleComplete CycleResult = iota
	CycleAbsent
	CycleRemoved
	CycleCancelled
)

func (r CycleResult) String() string {
	switch r {
	case CycleComplete:
		return "complete"
	case CycleAbsent:
		return "absent"
	case CycleRemoved:
		return "removed"
	case CycleCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Observer receives accounting events. All methods run on the
// battery's execution context.
type Observer interface {
	transact.Observer
	CycleFinished(r CycleResult)
	DeadlineExpired()
}

// Timer is a one-shot timer whose callback runs on the battery's
// execution context. A stopped or re-armed timer never delivers a
// stale firing.
type Timer interface {
	Reset(d time.Duration)
	Stop()
}

// Clock creates unarmed timers.
type Clock interface {
	NewTimer(f func()) Timer
}

// ---- NOP DEFAULTS ----

type nopSink struct{}

func (nopSink) Publish(Snapshot) {}

type nopPowerRoot struct{}

func (nopPowerRoot) ACChanged(bool) {}

type nopObserver struct{}

func (nopObserver) Retry(uint8, smbus.Status)          {}
func (nopObserver) Exhausted(uint8, smbus.Status)      {}
func (nopObserver) NonRecoverable(uint8, smbus.Status) {}
func (nopObserver) CycleFinished(CycleResult)          {}
func (nopObserver) DeadlineExpired()                   {}

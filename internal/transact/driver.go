// internal/transact/driver.go
package transact

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/smartbattery-poller/internal/retry"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// MaxRetries is the consecutive retry budget for one field.
const MaxRetries = 5

// Backoff is the pause before retry attempt n (0-based).
var Backoff = [MaxRetries]time.Duration{
	10 * time.Microsecond,
	100 * time.Microsecond,
	1 * time.Millisecond,
	10 * time.Millisecond,
	250 * time.Millisecond,
}

// Bus accepts one asynchronous request. The completion is delivered
// back to the owner's execution context, which calls Driver.Complete.
type Bus interface {
	Submit(t *smbus.Transaction)
}

// Observer receives retry accounting. All methods run on the owner's
// execution context.
type Observer interface {
	Retry(cmd uint8, s smbus.Status)
	Exhausted(cmd uint8, s smbus.Status)
	NonRecoverable(cmd uint8, s smbus.Status)
}

type nopObserver struct{}

func (nopObserver) Retry(uint8, smbus.Status)          {}
func (nopObserver) Exhausted(uint8, smbus.Status)      {}
func (nopObserver) NonRecoverable(uint8, smbus.Status) {}

// Result is a classified, final outcome for one field.
type Result struct {
	smbus.Transaction

	// GaveUp is set when the retry budget was spent.
	GaveUp bool
	// NonRecoverable is set when the status was never retryable.
	NonRecoverable bool
}

// OK reports whether the transport delivered data.
func (r Result) OK() bool { return r.Status == smbus.StatusOK }

// Config wires a Driver.
type Config struct {
	Bus      Bus
	Logger   zerolog.Logger
	Observer Observer

	// Sleep blocks between retries. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Driver issues one transaction at a time and owns the retry counter.
// It is not safe for concurrent use; every call must come from the
// same execution context.
type Driver struct {
	bus   Bus
	log   zerolog.Logger
	obs   Observer
	sleep func(time.Duration)

	attempts int
	pending  *smbus.Transaction
}

// New creates a driver.
func New(cfg Config) *Driver {
	d := &Driver{
		bus:   cfg.Bus,
		log:   cfg.Logger,
		obs:   cfg.Observer,
		sleep: cfg.Sleep,
	}
	if d.obs == nil {
		d.obs = nopObserver{}
	}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	return d
}

// Attempts returns the current consecutive retry count.
func (d *Driver) Attempts() int { return d.attempts }

// Pending returns the outstanding request, or nil.
func (d *Driver) Pending() *smbus.Transaction { return d.pending }

// Issue submits a fresh request for one field.
func (d *Driver) Issue(addr, cmd uint8, proto smbus.Protocol) {
	d.attempts = 0
	d.submit(smbus.Transaction{Address: addr, Command: cmd, Protocol: proto})
}

// Abandon forgets the outstanding request without touching the bus.
// Its completion, if any, is then ignored by the caller.
func (d *Driver) Abandon() {
	d.pending = nil
	d.attempts = 0
}

func (d *Driver) submit(req smbus.Transaction) {
	t := req
	d.pending = &t
	d.bus.Submit(&t)
}

// Complete classifies a completion. When done is false the identical
// request has been re-issued and the caller must not advance.
// absurd marks a transport success whose value is physically
// impossible; it is retried under the same budget.
func (d *Driver) Complete(t *smbus.Transaction, absurd bool) (res Result, done bool) {
	d.pending = nil

	verdict := retry.Classify(t.Status)
	if !retry.Known(t.Status) {
		d.log.Error().
			Uint8("addr", t.Address).
			Uint8("cmd", t.Command).
			Stringer("status", t.Status).
			Msg("unclassified transport status")
	}

	needsRetry := verdict == retry.RetryableError
	if verdict == retry.Success && absurd {
		d.log.Debug().
			Uint8("cmd", t.Command).
			Msg("retrying command; absurd value zero")
		needsRetry = true
	}

	res = Result{Transaction: *t}

	if verdict == retry.NonRecoverableError {
		d.log.Warn().
			Uint8("addr", t.Address).
			Uint8("cmd", t.Command).
			Stringer("status", t.Status).
			Msg("non-recoverable status")
		d.obs.NonRecoverable(t.Command, t.Status)
		d.attempts = 0
		res.NonRecoverable = true
		return res, true
	}

	if !needsRetry {
		if d.attempts != 0 {
			d.log.Info().
				Uint8("cmd", t.Command).
				Int("attempt", d.attempts).
				Msg("retry succeeded")
			d.attempts = 0
		}
		return res, true
	}

	if d.attempts == MaxRetries {
		d.log.Warn().
			Uint8("addr", t.Address).
			Uint8("cmd", t.Command).
			Stringer("status", t.Status).
			Int("attempts", d.attempts).
			Msg("retry attempts exceeded")
		d.obs.Exhausted(t.Command, t.Status)
		d.attempts = 0
		res.GaveUp = true
		return res, true
	}

	d.sleep(Backoff[d.attempts])
	d.attempts++
	d.obs.Retry(t.Command, t.Status)

	d.log.Debug().
		Uint8("cmd", t.Command).
		Stringer("status", t.Status).
		Int("attempt", d.attempts).
		Int("max", MaxRetries).
		Msg("transaction failed; retrying")

	d.submit(t.Request())
	return Result{}, false
}

// internal/retry/classify.go
package retry

import (
	"github.com/tamzrod/smartbattery-poller/internal/sbs"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// Verdict is the classification of one transport outcome.
type Verdict uint8

const (
	Success Verdict = iota
	RetryableError
	NonRecoverableError
)

func (v Verdict) String() string {
	switch v {
	case Success:
		return "success"
	case RetryableError:
		return "retryable"
	case NonRecoverableError:
		return "non_recoverable"
	default:
		return "unknown"
	}
}

// The retryable and non-recoverable sets are disjoint and, together
// with StatusOK, cover every smbus.Status.
func retryable(s smbus.Status) bool {
	switch s {
	case smbus.StatusAddressNotAcknowledged,
		smbus.StatusCommandAccessDenied,
		smbus.StatusDeviceAccessDenied,
		smbus.StatusUnknownHostError,
		smbus.StatusUnknownFailure,
		smbus.StatusDeviceError,
		smbus.StatusTimeout,
		smbus.StatusBusy:
		return true
	}
	return false
}

func nonRecoverable(s smbus.Status) bool {
	switch s {
	case smbus.StatusHostUnsupportedProtocol,
		smbus.StatusPECError:
		return true
	}
	return false
}

// Known reports whether s belongs to one of the classified sets.
func Known(s smbus.Status) bool {
	return s == smbus.StatusOK || retryable(s) || nonRecoverable(s)
}

// Classify maps a transport status to a verdict.
// Codes outside the known sets are treated as non-recoverable.
func Classify(s smbus.Status) Verdict {
	switch {
	case s == smbus.StatusOK:
		return Success
	case retryable(s):
		return RetryableError
	default:
		return NonRecoverableError
	}
}

// AbsurdZero reports whether a transport-successful read must be
// re-read because a capacity register returned zero.
//
// Zero full-charge and design capacity are never valid. Zero remaining
// capacity is valid once the battery reports fully discharged.
func AbsurdZero(cmd uint8, raw uint16, fullyDischarged bool) bool {
	if raw != 0 || !sbs.IsCapacity(cmd) {
		return false
	}
	if cmd == sbs.CmdRemainingCapacity && fullyDischarged {
		return false
	}
	return true
}

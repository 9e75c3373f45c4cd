// internal/smbus/status.go
package smbus

import "fmt"

// Status is the outcome of one bus transaction as reported by the host
// controller. Values follow the SMBus host status codes.
type Status uint8

const (
	StatusOK                      Status = 0x00
	StatusUnknownFailure          Status = 0x07
	StatusAddressNotAcknowledged  Status = 0x10
	StatusDeviceError             Status = 0x11
	StatusCommandAccessDenied     Status = 0x12
	StatusUnknownHostError        Status = 0x13
	StatusDeviceAccessDenied      Status = 0x17
	StatusTimeout                 Status = 0x18
	StatusHostUnsupportedProtocol Status = 0x19
	StatusBusy                    Status = 0x1A
	StatusPECError                Status = 0x1F
)

// AllStatuses lists every status a transport may produce.
var AllStatuses = []Status{
	StatusOK,
	StatusUnknownFailure,
	StatusAddressNotAcknowledged,
	StatusDeviceError,
	StatusCommandAccessDenied,
	StatusUnknownHostError,
	StatusDeviceAccessDenied,
	StatusTimeout,
	StatusHostUnsupportedProtocol,
	StatusBusy,
	StatusPECError,
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownFailure:
		return "unknown_failure"
	case StatusAddressNotAcknowledged:
		return "address_not_acknowledged"
	case StatusDeviceError:
		return "device_error"
	case StatusCommandAccessDenied:
		return "command_access_denied"
	case StatusUnknownHostError:
		return "unknown_host_error"
	case StatusDeviceAccessDenied:
		return "device_access_denied"
	case StatusTimeout:
		return "timeout"
	case StatusHostUnsupportedProtocol:
		return "host_unsupported_protocol"
	case StatusBusy:
		return "busy"
	case StatusPECError:
		return "pec_error"
	default:
		return fmt.Sprintf("status_0x%02x", uint8(s))
	}
}

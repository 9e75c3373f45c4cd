// internal/smbus/i2cbus/errno_linux.go
package i2cbus

import (
	"syscall"

	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// Linux adapters report a missing ACK as EREMOTEIO.
var extraErrnos = []struct {
	errno  syscall.Errno
	status smbus.Status
}{
	{syscall.EREMOTEIO, smbus.StatusAddressNotAcknowledged},
}

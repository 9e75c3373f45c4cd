// internal/smbus/i2cbus/errno_other.go

//go:build !linux

package i2cbus

import (
	"syscall"

	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

var extraErrnos []struct {
	errno  syscall.Errno
	status smbus.Status
}

// internal/smbus/i2cbus/transport.go
package i2cbus

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// Transport performs SMBus reads on a Linux I²C adapter.
// It serializes requests.
type Transport struct {
	mu    sync.Mutex
	bus   i2c.Bus
	close func() error
}

// Open initialises the host drivers and opens the named bus
// ("1", "/dev/i2c-1", or "" for the first bus).
func Open(name string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, err
	}
	return &Transport{bus: b, close: b.Close}, nil
}

// New wraps an already opened bus. The caller keeps ownership.
func New(b i2c.Bus) *Transport {
	return &Transport{bus: b, close: func() error { return nil }}
}

// Close releases the bus.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.close()
}

// Do implements smbus.Transport.
func (t *Transport) Do(ctx context.Context, tx *smbus.Transaction) {
	tx.Data = nil
	if err := ctx.Err(); err != nil {
		tx.Status = smbus.StatusTimeout
		return
	}

	var r []byte
	switch tx.Protocol {
	case smbus.ProtocolReadWord:
		r = make([]byte, 2)
	case smbus.ProtocolReadBlock:
		r = make([]byte, 1+smbus.MaxBlockLen)
	default:
		tx.Status = smbus.StatusHostUnsupportedProtocol
		return
	}

	t.mu.Lock()
	dev := i2c.Dev{Bus: t.bus, Addr: uint16(tx.Address)}
	err := dev.Tx([]byte{tx.Command}, r)
	t.mu.Unlock()

	if err != nil {
		tx.Status = StatusOf(err)
		return
	}

	if tx.Protocol == smbus.ProtocolReadBlock {
		n := int(r[0])
		if n > smbus.MaxBlockLen {
			tx.Status = smbus.StatusDeviceError
			return
		}
		r = r[1 : 1+n]
	}
	tx.Data = r
	tx.Status = smbus.StatusOK
}

// errnoStatus maps kernel I²C errors onto SMBus host statuses.
var errnoStatus = []struct {
	errno  syscall.Errno
	status smbus.Status
}{
	{syscall.EBUSY, smbus.StatusBusy},
	{syscall.EAGAIN, smbus.StatusBusy},
	{syscall.ENXIO, smbus.StatusAddressNotAcknowledged},
	{syscall.ETIMEDOUT, smbus.StatusTimeout},
	{syscall.EOPNOTSUPP, smbus.StatusHostUnsupportedProtocol},
	{syscall.EPROTONOSUPPORT, smbus.StatusHostUnsupportedProtocol},
	{syscall.EBADMSG, smbus.StatusPECError},
	{syscall.EACCES, smbus.StatusDeviceAccessDenied},
	{syscall.EPERM, smbus.StatusCommandAccessDenied},
	{syscall.ENODEV, smbus.StatusUnknownHostError},
	{syscall.EIO, smbus.StatusDeviceError},
}

// StatusOf maps a bus error onto an SMBus host status. periph
// formats errno values into its messages, so the text is matched when
// the error does not wrap them.
func StatusOf(err error) smbus.Status {
	if err == nil {
		return smbus.StatusOK
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return smbus.StatusTimeout
	}
	for _, e := range extraErrnos {
		if errors.Is(err, e.errno) {
			return e.status
		}
	}
	for _, e := range errnoStatus {
		if errors.Is(err, e.errno) {
			return e.status
		}
	}

	msg := err.Error()
	for _, e := range extraErrnos {
		if strings.Contains(msg, e.errno.Error()) {
			return e.status
		}
	}
	for _, e := range errnoStatus {
		if strings.Contains(msg, e.errno.Error()) {
			return e.status
		}
	}
	return smbus.StatusUnknownFailure
}

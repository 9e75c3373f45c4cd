// internal/smbus/modbus/transport.go
package modbus

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// Register layout of an SMBus-to-Modbus bridge.
// Holding register (address<<8 | command) returns the SMBus word.
// Block reads return a byte stream packed big-endian into
// blockRegisters registers: count byte, then payload.
const blockRegisters = (1 + smbus.MaxBlockLen + 1) / 2

// registerReader is the subset of modbus.Client the transport needs.
type registerReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// Transport performs SMBus reads through a Modbus gateway.
// It serializes requests.
type Transport struct {
	mu     sync.Mutex
	reader registerReader
	close  func() error
}

// TCPConfig is the Modbus TCP gateway config.
type TCPConfig struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
}

// RTUConfig is the Modbus RTU gateway config.
type RTUConfig struct {
	Device   string
	BaudRate int
	UnitID   uint8
	Timeout  time.Duration
}

// NewTCP connects to a Modbus TCP gateway.
func NewTCP(cfg TCPConfig) (*Transport, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("smbus modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}
	return newTransport(modbus.NewClient(h), h.Close), nil
}

// NewRTU opens a Modbus RTU gateway on a serial line (8N1).
func NewRTU(cfg RTUConfig) (*Transport, error) {
	if cfg.Device == "" {
		return nil, errors.New("smbus modbus: device required")
	}

	h := modbus.NewRTUClientHandler(cfg.Device)
	h.BaudRate = cfg.BaudRate
	h.DataBits = 8
	h.Parity = "N"
	h.StopBits = 1
	h.SlaveId = cfg.UnitID
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, err
	}
	return newTransport(modbus.NewClient(h), h.Close), nil
}

func newTransport(r registerReader, closeFn func() error) *Transport {
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &Transport{reader: r, close: closeFn}
}

// Close releases the gateway connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.close()
}

// Register returns the holding register for an SMBus command.
func Register(addr, cmd uint8) uint16 {
	return uint16(addr)<<8 | uint16(cmd)
}

// Do implements smbus.Transport.
func (t *Transport) Do(ctx context.Context, tx *smbus.Transaction) {
	tx.Data = nil
	if err := ctx.Err(); err != nil {
		tx.Status = smbus.StatusTimeout
		return
	}

	qty := uint16(1)
	if tx.Protocol == smbus.ProtocolReadBlock {
		qty = blockRegisters
	}

	t.mu.Lock()
	raw, err := t.reader.ReadHoldingRegisters(Register(tx.Address, tx.Command), qty)
	t.mu.Unlock()

	if err != nil {
		tx.Status = StatusOf(err)
		return
	}
	if len(raw) < 2*int(qty) {
		tx.Status = smbus.StatusDeviceError
		return
	}

	switch tx.Protocol {
	case smbus.ProtocolReadWord:
		// register is big-endian, SMBus words little-endian
		tx.Data = []byte{raw[1], raw[0]}
	case smbus.ProtocolReadBlock:
		n := int(raw[0])
		if n > smbus.MaxBlockLen || n > len(raw)-1 {
			tx.Status = smbus.StatusDeviceError
			return
		}
		tx.Data = append([]byte(nil), raw[1:1+n]...)
	default:
		tx.Status = smbus.StatusHostUnsupportedProtocol
		return
	}
	tx.Status = smbus.StatusOK
}

// StatusOf maps a gateway error onto an SMBus host status.
func StatusOf(err error) smbus.Status {
	if err == nil {
		return smbus.StatusOK
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		switch me.ExceptionCode {
		case modbus.ExceptionCodeIllegalFunction:
			return smbus.StatusHostUnsupportedProtocol
		case modbus.ExceptionCodeIllegalDataAddress:
			return smbus.StatusCommandAccessDenied
		case modbus.ExceptionCodeServerDeviceBusy, modbus.ExceptionCodeAcknowledge:
			return smbus.StatusBusy
		case modbus.ExceptionCodeServerDeviceFailure:
			return smbus.StatusDeviceError
		case modbus.ExceptionCodeMemoryParityError:
			return smbus.StatusPECError
		case modbus.ExceptionCodeGatewayPathUnavailable:
			return smbus.StatusUnknownHostError
		case modbus.ExceptionCodeGatewayTargetDeviceFailedToRespond:
			return smbus.StatusAddressNotAcknowledged
		}
		return smbus.StatusUnknownFailure
	}

	var te interface{ Timeout() bool }
	if errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &te) && te.Timeout()) {
		return smbus.StatusTimeout
	}
	return smbus.StatusUnknownFailure
}

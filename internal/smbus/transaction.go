// internal/smbus/transaction.go
package smbus

import "context"

// Protocol selects the SMBus read shape.
type Protocol uint8

const (
	// ProtocolReadWord reads a 16-bit little-endian word.
	ProtocolReadWord Protocol = iota + 1
	// ProtocolReadBlock reads a length-prefixed block (max MaxBlockLen bytes).
	ProtocolReadBlock
)

func (p Protocol) String() string {
	switch p {
	case ProtocolReadWord:
		return "word"
	case ProtocolReadBlock:
		return "block"
	default:
		return "unknown"
	}
}

// MaxBlockLen is the SMBus block transfer limit.
const MaxBlockLen = 32

// Transaction is one register access.
// Address is the 7-bit device address, Command the register.
// Status and Data are filled by the transport.
type Transaction struct {
	Address  uint8
	Command  uint8
	Protocol Protocol

	Status Status
	Data   []byte
}

// Request returns a copy of t with the reply fields cleared.
func (t Transaction) Request() Transaction {
	return Transaction{
		Address:  t.Address,
		Command:  t.Command,
		Protocol: t.Protocol,
	}
}

// Word decodes the reply as a little-endian 16-bit value.
// Short payloads decode as zero.
func (t *Transaction) Word() uint16 {
	if len(t.Data) < 2 {
		return 0
	}
	return uint16(t.Data[0]) | uint16(t.Data[1])<<8
}

// Transport performs transactions synchronously.
// Implementations never return Go errors: every failure is mapped
// onto a Status so the caller can classify it.
type Transport interface {
	Do(ctx context.Context, t *Transaction)
}

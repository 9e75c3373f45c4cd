// internal/writer/types.go
package writer

// Target is one register destination for a battery block.
type Target struct {
	Endpoint string
	Protocol string
	UnitID   uint8
	BaseSlot uint16
}

// Plan is the fully-built write plan for one battery.
type Plan struct {
	BatteryID  string
	DeviceName string // fallback when the battery reports none
	Targets    []Target
}

// EndpointClient is the exact contract the writer uses.
// IMPORTANT: There must be NO other version of this interface anywhere.
type EndpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// Reporter is told about failed target writes.
type Reporter interface {
	WriteFailed(batteryID, endpoint string)
}

func clientKey(protocol, endpoint string) string {
	return protocol + "|" + endpoint
}

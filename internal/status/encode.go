// internal/status/encode.go
package status

import (
	"strconv"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
)

// Encode converts a battery snapshot into a full register block.
// fallbackName is used when the battery reports no device name.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s battery.Snapshot, fallbackName string) []uint16 {
	regs := make([]uint16, SlotsPerBattery)

	regs[SlotHealth] = Health(s)
	regs[SlotFlags] = flags(s)

	regs[SlotRemainingCapacity] = s.RemainingCapacity
	regs[SlotFullChargeCapacity] = s.FullChargeCapacity
	regs[SlotDesignCapacity] = s.DesignCapacity
	regs[SlotAmperage] = uint16(s.Amperage)
	regs[SlotInstantCurrent] = uint16(s.InstantCurrent)
	regs[SlotVoltage] = s.Voltage
	regs[SlotMaxError] = s.MaxError
	regs[SlotCycleCount] = s.CycleCount
	regs[SlotAvgTimeToEmpty] = s.AvgTimeToEmpty
	regs[SlotAvgTimeToFull] = s.AvgTimeToFull
	regs[SlotTimeRemaining] = s.TimeRemaining
	regs[SlotTemperature] = s.Temperature

	for i := 0; i < SlotCellVoltageSlots && i < len(s.CellVoltages); i++ {
		regs[SlotCellVoltageStart+i] = s.CellVoltages[i]
	}

	regs[SlotManufactureDate] = s.ManufactureDate
	regs[SlotSerial] = serial(s.Serial)
	regs[SlotLegacyFlags] = uint16(s.Legacy.Flags)
	regs[SlotLastReadError] = uint16(s.Diagnostics.LastReadError)
	regs[SlotLastReadCmd] = uint16(s.Diagnostics.LastReadErrorCmd)
	regs[SlotRetryExhausted] = saturate(s.Diagnostics.Errors.RetryExhausted)

	name := s.DeviceName
	if name == "" {
		name = fallbackName
	}
	copy(regs[SlotDeviceNameStart:], EncodeASCII(name))
	copy(regs[SlotManufacturerStart:], EncodeASCII(s.Manufacturer))

	return regs
}

// Health collapses a snapshot into one health code.
func Health(s battery.Snapshot) uint16 {
	switch {
	case s.Diagnostics.UserClientStalled:
		return HealthStalled
	case s.Diagnostics.PermanentFailure:
		return HealthFailed
	case !s.Present:
		return HealthAbsent
	default:
		return HealthOK
	}
}

func flags(s battery.Snapshot) uint16 {
	var f uint16
	set := func(on bool, bit uint16) {
		if on {
			f |= bit
		}
	}
	set(s.Present, FlagPresent)
	set(s.ACConnected, FlagACConnected)
	set(s.ChargeCapable, FlagChargeCapable)
	set(s.Charging, FlagCharging)
	set(s.FullyCharged, FlagFullyCharged)
	set(s.FullyDischarged, FlagFullyDischarged)
	set(s.Diagnostics.QuickPoll, FlagQuickPoll)
	set(s.Diagnostics.PermanentFailure, FlagPermanentFailure)
	set(s.Diagnostics.UserClientStalled, FlagUserClientStalled)
	return f
}

// serial is the numeric serial; anything unparsable encodes as zero.
func serial(s string) uint16 {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(n)
}

func saturate(v uint32) uint16 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// EncodeASCII packs up to 16 ASCII characters into 8 registers.
// Each register stores two bytes in big-endian order.
func EncodeASCII(name string) []uint16 {
	out := make([]uint16, SlotASCIISlots)

	b := []byte(name)
	if len(b) > ASCIIMaxChars {
		b = b[:ASCIIMaxChars]
	}

	// sanitize to printable ASCII
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < ASCIIMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}

// internal/status/constants.go
package status

// Battery register block layout.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerBattery is the fixed number of registers per battery.
const SlotsPerBattery = 40

// ---- SLOT INDICES ----

const (
	SlotHealth = 0
	SlotFlags  = 1

	SlotRemainingCapacity  = 2
	SlotFullChargeCapacity = 3
	SlotDesignCapacity     = 4
	SlotAmperage           = 5 // int16, two's complement
	SlotInstantCurrent     = 6 // int16, two's complement
	SlotVoltage            = 7
	SlotMaxError           = 8
	SlotCycleCount         = 9
	SlotAvgTimeToEmpty     = 10
	SlotAvgTimeToFull      = 11
	SlotTimeRemaining      = 12
	SlotTemperature        = 13

	// Cells 1..4.
	SlotCellVoltageStart = 14
	SlotCellVoltageSlots = 4

	SlotManufactureDate = 18
	SlotSerial          = 19
	SlotLegacyFlags     = 20
	SlotLastReadError   = 21
	SlotLastReadCmd     = 22
	SlotRetryExhausted  = 23
)

// ---- ASCII FIELDS ----

// SlotDeviceNameStart is the first register of the device name.
const SlotDeviceNameStart = 24

// SlotManufacturerStart is the first register of the manufacturer name.
// Both names live at the end of the block.
const SlotManufacturerStart = 32

// SlotASCIISlots is the number of registers per ASCII field.
const SlotASCIISlots = 8

// ASCIIMaxChars is the maximum number of characters per ASCII field.
const ASCIIMaxChars = SlotASCIISlots * 2

// ---- FLAG BITS (SlotFlags) ----

const (
	FlagPresent uint16 = 1 << iota
	FlagACConnected
	FlagChargeCapable
	FlagCharging
	FlagFullyCharged
	FlagFullyDischarged
	FlagQuickPoll
	FlagPermanentFailure
	FlagUserClientStalled
)

// ---- HEALTH CODES ----

// HealthUnknown is the zeroed register memory before the first write.
const HealthUnknown uint16 = 0

// HealthOK represents an installed battery.
const HealthOK uint16 = 1

// HealthAbsent represents no battery installed.
const HealthAbsent uint16 = 2

// HealthStalled represents polling halted by a user client.
const HealthStalled uint16 = 3

// HealthFailed represents a permanent battery failure.
const HealthFailed uint16 = 4

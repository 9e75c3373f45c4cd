// internal/sbs/registers.go
package sbs

// Smart Battery System register map.
// Addresses are 7-bit SMBus addresses.

// ---- ADDRESSES ----

const (
	// ManagerAddress is the smart battery system manager.
	ManagerAddress uint8 = 0x0A
	// BatteryAddress is the smart battery itself.
	BatteryAddress uint8 = 0x0B
)

// ---- MANAGER COMMANDS ----

const (
	// CmdSystemState reports per-battery presence and charging.
	CmdSystemState uint8 = 0x01
	// CmdSystemStateCont reports AC presence and power quality.
	CmdSystemStateCont uint8 = 0x02
)

// ---- BATTERY COMMANDS ----

const (
	CmdTemperature        uint8 = 0x08
	CmdVoltage            uint8 = 0x09
	CmdCurrent            uint8 = 0x0A
	CmdAverageCurrent     uint8 = 0x0B
	CmdMaxError           uint8 = 0x0C
	CmdRemainingCapacity  uint8 = 0x0F
	CmdFullChargeCapacity uint8 = 0x10
	CmdAverageTimeToEmpty uint8 = 0x12
	CmdAverageTimeToFull  uint8 = 0x13
	CmdBatteryStatus      uint8 = 0x16
	CmdCycleCount         uint8 = 0x17
	CmdDesignCapacity     uint8 = 0x18
	CmdManufactureDate    uint8 = 0x1B
	CmdSerialNumber       uint8 = 0x1C
	CmdManufacturerName   uint8 = 0x20
	CmdDeviceName         uint8 = 0x21

	// Cell voltages count down from cell 1.
	CmdCellVoltage4 uint8 = 0x3C
	CmdCellVoltage3 uint8 = 0x3D
	CmdCellVoltage2 uint8 = 0x3E
	CmdCellVoltage1 uint8 = 0x3F
)

// ---- BIT MASKS ----

const (
	// SystemStateCont
	ACPresentBit    uint16 = 0x0001
	PowerNotGoodBit uint16 = 0x0002

	// SystemState
	PresentBatteryABit  uint16 = 0x0001
	ChargingBatteryABit uint16 = 0x0010

	// BatteryStatus
	FullyDischargedBit         uint16 = 0x0010
	FullyChargedBit            uint16 = 0x0020
	TerminateDischargeAlarmBit uint16 = 0x0800
	TerminateChargeAlarmBit    uint16 = 0x4000
)

// IsCapacity reports whether cmd reads one of the capacity registers.
func IsCapacity(cmd uint8) bool {
	switch cmd {
	case CmdRemainingCapacity, CmdFullChargeCapacity, CmdDesignCapacity:
		return true
	}
	return false
}

// PermanentFailure reports whether both terminate alarms are raised.
func PermanentFailure(status uint16) bool {
	const both = TerminateDischargeAlarmBit | TerminateChargeAlarmBit
	return status&both == both
}

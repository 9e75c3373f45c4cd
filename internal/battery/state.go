// internal/battery/state.go
package battery

import (
	"github.com/tamzrod/smartbattery-poller/internal/sbs"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// Path selects the cycle entry mode.
type Path uint8

const (
	// PathExisting refreshes the fields that change during use.
	PathExisting Path = iota + 1
	// PathNew also re-reads identity and design capacity.
	PathNew
)

func (p Path) String() string {
	switch p {
	case PathExisting:
		return "existing"
	case PathNew:
		return "new"
	default:
		return "unknown"
	}
}

// State is one step of a read cycle.
type State uint8

const (
	StateIdle State = iota
	StateStart
	StateChargerStatus
	StateSystemState
	StateBatteryStatus

	// new-battery path only
	StateManufacturerName
	StateManufactureDate
	StateDeviceName
	StateSerialNumber
	StateDesignCapacity

	StateRemainingCapacity
	StateFullChargeCapacity
	StateAverageCurrent
	StateVoltage
	StateMaxError
	StateCycleCount
	StateAvgTimeToEmpty
	StateAvgTimeToFull
	StateTemperature
	StateCellVoltage1
	StateCellVoltage2
	StateCellVoltage3
	StateCellVoltage4
	StateInstantCurrent

	// terminals
	StateTerminal
	StateAbsent
	StateRemoved
)

var stateNames = [...]string{
	StateIdle:               "idle",
	StateStart:              "start",
	StateChargerStatus:      "charger_status",
	StateSystemState:        "system_state",
	StateBatteryStatus:      "battery_status",
	StateManufacturerName:   "manufacturer_name",
	StateManufactureDate:    "manufacture_date",
	StateDeviceName:         "device_name",
	StateSerialNumber:       "serial_number",
	StateDesignCapacity:     "design_capacity",
	StateRemainingCapacity:  "remaining_capacity",
	StateFullChargeCapacity: "full_charge_capacity",
	StateAverageCurrent:     "average_current",
	StateVoltage:            "voltage",
	StateMaxError:           "max_error",
	StateCycleCount:         "cycle_count",
	StateAvgTimeToEmpty:     "avg_time_to_empty",
	StateAvgTimeToFull:      "avg_time_to_full",
	StateTemperature:        "temperature",
	StateCellVoltage1:       "cell_voltage_1",
	StateCellVoltage2:       "cell_voltage_2",
	StateCellVoltage3:       "cell_voltage_3",
	StateCellVoltage4:       "cell_voltage_4",
	StateInstantCurrent:     "instant_current",
	StateTerminal:           "terminal",
	StateAbsent:             "absent",
	StateRemoved:            "removed",
}

func (s State) String() string {
	if int(s) < len(stateNames) && stateNames[s] != "" {
		return stateNames[s]
	}
	return "invalid"
}

// Terminal reports whether s ends a cycle.
func (s State) Terminal() bool {
	return s == StateTerminal || s == StateAbsent || s == StateRemoved
}

// Field is the register read performed in a state.
type Field struct {
	Address  uint8
	Command  uint8
	Protocol smbus.Protocol
}

func word(addr, cmd uint8) Field {
	return Field{Address: addr, Command: cmd, Protocol: smbus.ProtocolReadWord}
}

func block(addr, cmd uint8) Field {
	return Field{Address: addr, Command: cmd, Protocol: smbus.ProtocolReadBlock}
}

// Addresses lets a deployment relocate the manager and battery.
type Addresses struct {
	Manager uint8
	Battery uint8
}

// DefaultAddresses are the SBS standard addresses.
var DefaultAddresses = Addresses{Manager: sbs.ManagerAddress, Battery: sbs.BatteryAddress}

// FieldFor returns the register read for s. ok is false for states
// that perform no bus access.
func FieldFor(s State, a Addresses) (f Field, ok bool) {
	m, b := a.Manager, a.Battery
	switch s {
	case StateChargerStatus:
		return word(m, sbs.CmdSystemStateCont), true
	case StateSystemState:
		return word(m, sbs.CmdSystemState), true
	case StateBatteryStatus:
		return word(b, sbs.CmdBatteryStatus), true
	case StateManufacturerName:
		return block(b, sbs.CmdManufacturerName), true
	case StateManufactureDate:
		return word(b, sbs.CmdManufactureDate), true
	case StateDeviceName:
		return block(b, sbs.CmdDeviceName), true
	case StateSerialNumber:
		return word(b, sbs.CmdSerialNumber), true
	case StateDesignCapacity:
		return word(b, sbs.CmdDesignCapacity), true
	case StateRemainingCapacity:
		return word(b, sbs.CmdRemainingCapacity), true
	case StateFullChargeCapacity:
		return word(b, sbs.CmdFullChargeCapacity), true
	case StateAverageCurrent:
		return word(b, sbs.CmdAverageCurrent), true
	case StateVoltage:
		return word(b, sbs.CmdVoltage), true
	case StateMaxError:
		return word(b, sbs.CmdMaxError), true
	case StateCycleCount:
		return word(b, sbs.CmdCycleCount), true
	case StateAvgTimeToEmpty:
		return word(b, sbs.CmdAverageTimeToEmpty), true
	case StateAvgTimeToFull:
		return word(b, sbs.CmdAverageTimeToFull), true
	case StateTemperature:
		return word(b, sbs.CmdTemperature), true
	case StateCellVoltage1:
		return word(b, sbs.CmdCellVoltage1), true
	case StateCellVoltage2:
		return word(b, sbs.CmdCellVoltage2), true
	case StateCellVoltage3:
		return word(b, sbs.CmdCellVoltage3), true
	case StateCellVoltage4:
		return word(b, sbs.CmdCellVoltage4), true
	case StateInstantCurrent:
		return word(b, sbs.CmdCurrent), true
	}
	return Field{}, false
}

// Outcome is what a completed state tells the transition function.
type Outcome uint8

const (
	// OutcomeNext continues along the current path.
	OutcomeNext Outcome = iota
	// OutcomeAbsent means no battery is installed.
	OutcomeAbsent
	// OutcomePermanentFailure means the battery raised both terminate alarms.
	OutcomePermanentFailure
)

// Transition is the pure next-state function of a read cycle.
func Transition(s State, p Path, o Outcome) State {
	switch o {
	case OutcomeAbsent:
		return StateAbsent
	case OutcomePermanentFailure:
		return StateRemoved
	}

	switch s {
	case StateIdle:
		return StateStart
	case StateStart:
		return StateChargerStatus
	case StateChargerStatus:
		return StateSystemState
	case StateSystemState:
		return StateBatteryStatus
	case StateBatteryStatus:
		if p == PathNew {
			return StateManufacturerName
		}
		return StateRemainingCapacity
	case StateManufacturerName:
		return StateManufactureDate
	case StateManufactureDate:
		return StateDeviceName
	case StateDeviceName:
		return StateSerialNumber
	case StateSerialNumber:
		return StateDesignCapacity
	case StateDesignCapacity:
		return StateRemainingCapacity
	case StateRemainingCapacity:
		return StateFullChargeCapacity
	case StateFullChargeCapacity:
		return StateAverageCurrent
	case StateAverageCurrent:
		return StateVoltage
	case StateVoltage:
		return StateMaxError
	case StateMaxError:
		return StateCycleCount
	case StateCycleCount:
		return StateAvgTimeToEmpty
	case StateAvgTimeToEmpty:
		return StateAvgTimeToFull
	case StateAvgTimeToFull:
		return StateTemperature
	case StateTemperature:
		return StateCellVoltage1
	case StateCellVoltage1:
		return StateCellVoltage2
	case StateCellVoltage2:
		return StateCellVoltage3
	case StateCellVoltage3:
		return StateCellVoltage4
	case StateCellVoltage4:
		return StateInstantCurrent
	case StateInstantCurrent:
		return StateTerminal
	}
	// terminals
	return StateIdle
}

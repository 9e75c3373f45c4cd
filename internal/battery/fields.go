// internal/battery/fields.go
package battery

import (
	"bytes"
	"strconv"

	"github.com/tamzrod/smartbattery-poller/internal/sbs"
	"github.com/tamzrod/smartbattery-poller/internal/transact"
)

// apply folds a delivered result into the snapshot.
// mutated is false when the state only touched the cycle.
func (m *Machine) apply(s State, res transact.Result) (o Outcome, mutated bool) {
	ok := res.OK()
	w := res.Word()
	if !ok {
		w = 0
	}
	snap := &m.snap

	switch s {
	case StateChargerStatus:
		ac, capable := false, false
		if ok {
			ac = !m.inflowDisabled && w&sbs.ACPresentBit != 0
			capable = w&sbs.PowerNotGoodBit == 0
		}
		if ac != snap.ACConnected {
			m.log.Info().Bool("ac", ac).Msg("ac state changed")
			m.power.ACChanged(ac)
		}
		snap.ACConnected = ac
		snap.ChargeCapable = capable

	case StateSystemState:
		snap.Present = ok && w&sbs.PresentBatteryABit != 0
		snap.Charging = ok && !m.chargeInhibited && w&sbs.ChargingBatteryABit != 0
		if !snap.Present {
			return OutcomeAbsent, true
		}

	case StateBatteryStatus:
		if !ok {
			snap.FullyCharged = false
			snap.FullyDischarged = false
			break
		}
		snap.FullyCharged = w&sbs.FullyChargedBit != 0
		if w&sbs.FullyDischargedBit != 0 {
			if !snap.FullyDischarged {
				snap.FullyDischarged = true
				m.mgr.HandleFullDischarge()
			}
		} else {
			snap.FullyDischarged = false
		}
		if sbs.PermanentFailure(w) {
			m.recordError(ErrorPermanentFailure, res.Command, res.Status)
			m.log.Error().
				Uint16("battery_status", w).
				Msg("permanent battery failure")
			return OutcomePermanentFailure, true
		}

	case StateManufacturerName:
		if !ok {
			snap.Manufacturer = ""
		} else if len(res.Data) > 0 {
			snap.Manufacturer = blockString(res.Data)
		}

	case StateManufactureDate:
		snap.ManufactureDate = w

	case StateDeviceName:
		if !ok {
			snap.DeviceName = ""
		} else if len(res.Data) > 0 {
			snap.DeviceName = blockString(res.Data)
		}

	case StateSerialNumber:
		snap.Serial = ""
		if ok {
			snap.Serial = strconv.Itoa(int(w))
		}

	case StateDesignCapacity:
		snap.DesignCapacity = w
		m.checkZeroCapacity(res, w)

	case StateRemainingCapacity:
		snap.RemainingCapacity = w
		m.checkZeroCapacity(res, w)

	case StateFullChargeCapacity:
		snap.FullChargeCapacity = w
		m.checkZeroCapacity(res, w)
		snap.Diagnostics.QuickPoll = m.policy.Adapt(snap.RemainingCapacity, w, snap.ACConnected)

	case StateAverageCurrent:
		snap.Amperage = int16(w)
		if !ok {
			snap.TimeRemaining = 0
		}

	case StateVoltage:
		snap.Voltage = w

	case StateMaxError:
		snap.MaxError = w

	case StateCycleCount:
		snap.CycleCount = w

	case StateAvgTimeToEmpty:
		snap.AvgTimeToEmpty = w
		if !ok {
			snap.TimeRemaining = 0
		} else if snap.Amperage < 0 {
			snap.TimeRemaining = w
		}

	case StateAvgTimeToFull:
		snap.AvgTimeToFull = w
		if !ok {
			snap.TimeRemaining = 0
		} else if snap.Amperage > 0 {
			snap.TimeRemaining = w
		}

	case StateTemperature:
		snap.Temperature = w

	case StateCellVoltage1, StateCellVoltage2, StateCellVoltage3:
		if s == StateCellVoltage1 {
			m.cyc.cells = make([]uint16, 0, 4)
		}
		m.cyc.cells = append(m.cyc.cells, w)
		return OutcomeNext, false

	case StateCellVoltage4:
		cells := append(m.cyc.cells, w)
		m.cyc.cells = nil
		if len(cells) == 4 {
			snap.CellVoltages = cells
		} else {
			snap.CellVoltages = nil
		}

	case StateInstantCurrent:
		snap.InstantCurrent = int16(w)
	}

	return OutcomeNext, true
}

// checkZeroCapacity logs a zero capacity that survived the retry
// budget. Remaining capacity reads zero legitimately once the battery
// is fully discharged.
func (m *Machine) checkZeroCapacity(res transact.Result, v uint16) {
	if v != 0 {
		return
	}
	if res.OK() && res.Command == sbs.CmdRemainingCapacity && m.snap.FullyDischarged {
		return
	}
	m.recordError(ErrorZeroCapacity, res.Command, res.Status)
	m.log.Warn().
		Uint8("cmd", res.Command).
		Stringer("status", res.Status).
		Msg("capacity read zero")
}

// blockString decodes an SMBus block payload, stopping at the first NUL.
func blockString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

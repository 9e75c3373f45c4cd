// internal/battery/snapshot.go
package battery

// Static settle periods published alongside every snapshot.
const (
	InvalidWakeSeconds       = 30
	PostChargeWaitSeconds    = 120
	PostDischargeWaitSeconds = 120
)

// Legacy summary flags.
const (
	LegacyACInstalled      uint32 = 1 << 0
	LegacyBatteryCharging  uint32 = 1 << 1
	LegacyBatteryInstalled uint32 = 1 << 2
)

// LegacyInfo is the consolidated summary rebuilt at the end of a cycle.
type LegacyInfo struct {
	Flags         uint32 `json:"flags"`
	CurrentCharge uint16 `json:"current_charge"`
	Capacity      uint16 `json:"capacity"`
	Voltage       uint16 `json:"voltage"`
	Amperage      int16  `json:"amperage"`
	CycleCount    uint16 `json:"cycle_count"`
}

// ErrorCounts tallies logged read errors by kind.
type ErrorCounts struct {
	RetryExhausted   uint32 `json:"retry_exhausted"`
	NonRecoverable   uint32 `json:"non_recoverable"`
	ZeroCapacity     uint32 `json:"zero_capacity"`
	OverallTimeout   uint32 `json:"overall_timeout"`
	PermanentFailure uint32 `json:"permanent_failure"`
}

// Diagnostics are transient keys published with the snapshot.
type Diagnostics struct {
	LatestErrorType   string      `json:"latest_error_type,omitempty"`
	LastReadError     uint8       `json:"last_read_error"`
	LastReadErrorCmd  uint8       `json:"last_read_error_cmd"`
	Errors            ErrorCounts `json:"errors"`
	QuickPoll         bool        `json:"quick_poll"`
	PermanentFailure  bool        `json:"permanent_failure"`
	UserClientStalled bool        `json:"user_client_stalled"`
}

// Error types recorded in Diagnostics.LatestErrorType.
const (
	ErrorRetryAttemptsExceeded = "Read Retry Attempts Exceeded"
	ErrorOverallTimeoutExpired = "Overall Read Timeout Expired"
	ErrorZeroCapacity          = "Capacity Read Zero"
	ErrorPermanentFailure      = "Permanent Battery Failure"
	ErrorNonRecoverableStatus  = "Non-recoverable status failure"
)

// Snapshot is the validated battery state.
// Units follow the Smart Battery Data specification:
// mAh, mV, mA, minutes, 0.1 K.
type Snapshot struct {
	Present         bool `json:"present"`
	ACConnected     bool `json:"ac_connected"`
	ChargeCapable   bool `json:"charge_capable"`
	Charging        bool `json:"charging"`
	FullyCharged    bool `json:"fully_charged"`
	FullyDischarged bool `json:"fully_discharged"`

	RemainingCapacity  uint16   `json:"remaining_capacity"`
	FullChargeCapacity uint16   `json:"full_charge_capacity"`
	DesignCapacity     uint16   `json:"design_capacity"`
	Amperage           int16    `json:"amperage"`
	InstantCurrent     int16    `json:"instant_current"`
	Voltage            uint16   `json:"voltage"`
	MaxError           uint16   `json:"max_error"`
	CycleCount         uint16   `json:"cycle_count"`
	AvgTimeToEmpty     uint16   `json:"avg_time_to_empty"`
	AvgTimeToFull      uint16   `json:"avg_time_to_full"`
	TimeRemaining      uint16   `json:"time_remaining"`
	Temperature        uint16   `json:"temperature"`
	CellVoltages       []uint16 `json:"cell_voltages,omitempty"`

	Manufacturer    string `json:"manufacturer,omitempty"`
	DeviceName      string `json:"device_name,omitempty"`
	Serial          string `json:"serial,omitempty"`
	ManufactureDate uint16 `json:"manufacture_date"`

	Legacy      LegacyInfo  `json:"legacy"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s Snapshot) Clone() Snapshot {
	if s.CellVoltages != nil {
		cells := make([]uint16, len(s.CellVoltages))
		copy(cells, s.CellVoltages)
		s.CellVoltages = cells
	}
	return s
}

// clear zeroes battery state. Diagnostics counters survive; the
// permanent failure marker does not.
func (s *Snapshot) clear() {
	diag := s.Diagnostics
	diag.PermanentFailure = false
	*s = Snapshot{Diagnostics: diag}
	s.rebuildLegacy()
}

func (s *Snapshot) rebuildLegacy() {
	var flags uint32
	if s.ACConnected {
		flags |= LegacyACInstalled
	}
	if s.Present {
		flags |= LegacyBatteryInstalled
	}
	if s.Charging {
		flags |= LegacyBatteryCharging
	}
	s.Legacy = LegacyInfo{
		Flags:         flags,
		CurrentCharge: s.RemainingCapacity,
		Capacity:      s.FullChargeCapacity,
		Voltage:       s.Voltage,
		Amperage:      s.Amperage,
		CycleCount:    s.CycleCount,
	}
}

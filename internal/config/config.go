// internal/config/config.go
package config

type Config struct {
	Poller PollerConfig `yaml:"poller"`
	Log    LogConfig    `yaml:"log"`
}

type PollerConfig struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Batteries []BatteryConfig `yaml:"batteries"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen          string `yaml:"listen"` // empty disables the HTTP surface
	EventsPerMinute int    `yaml:"events_per_minute"`
}

// ---- LOG ----

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`

	// Optional rotated log file; empty logs to stdout.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ---- BATTERY ----

type BatteryConfig struct {
	ID         string          `yaml:"id"`
	DeviceName string          `yaml:"device_name"`
	Transport  TransportConfig `yaml:"transport"`
	Poll       PollConfig      `yaml:"poll"`
	Targets    []TargetConfig  `yaml:"targets"`
}

// ---- TRANSPORT ----

// Transport kinds.
const (
	KindI2C       = "i2c"
	KindModbusTCP = "modbus-tcp"
	KindModbusRTU = "modbus-rtu"
)

type TransportConfig struct {
	Kind string `yaml:"kind"`

	Bus      string `yaml:"bus"`       // i2c
	Endpoint string `yaml:"endpoint"`  // modbus-tcp
	Device   string `yaml:"device"`    // modbus-rtu
	BaudRate int    `yaml:"baud_rate"` // modbus-rtu

	UnitID    uint8 `yaml:"unit_id"` // modbus gateways
	TimeoutMs int   `yaml:"timeout_ms"`

	// 7-bit SMBus addresses; zero selects the standard address.
	ManagerAddress uint8 `yaml:"manager_address"`
	BatteryAddress uint8 `yaml:"battery_address"`
}

// ---- POLL ----

type PollConfig struct {
	NormalIntervalMs    int `yaml:"normal_interval_ms"`
	QuickIntervalMs     int `yaml:"quick_interval_ms"`
	ReadDeadlineMs      int `yaml:"read_deadline_ms"`
	BootPolls           int `yaml:"boot_polls"`
	MaxDeadlineRestarts int `yaml:"max_deadline_restarts"`

	// Diagnostic override (optional). 0 polls back to back.
	OverrideSeconds *int `yaml:"override_seconds"`
}

// ---- TARGET ----

// Target protocols.
const (
	ProtocolModbus = "modbus"
	ProtocolIngest = "ingest"
)

type TargetConfig struct {
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"`
	UnitID   uint8  `yaml:"unit_id"`
	BaseSlot uint16 `yaml:"base_slot"` // block index; address = base_slot * block size
}

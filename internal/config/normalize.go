// internal/config/normalize.go
package config

import "github.com/tamzrod/smartbattery-poller/internal/sbs"

// Defaults applied by Normalize.
const (
	DefaultTimeoutMs = 1000
	DefaultBaudRate  = 19200

	// DeviceNameMaxChars matches the register block name field.
	DeviceNameMaxChars = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	for bi := range cfg.Poller.Batteries {
		b := &cfg.Poller.Batteries[bi]

		// ASCII already validated
		if len(b.DeviceName) > DeviceNameMaxChars {
			b.DeviceName = b.DeviceName[:DeviceNameMaxChars]
		}

		tr := &b.Transport
		if tr.TimeoutMs == 0 {
			tr.TimeoutMs = DefaultTimeoutMs
		}
		if tr.Kind == KindModbusRTU && tr.BaudRate == 0 {
			tr.BaudRate = DefaultBaudRate
		}
		if tr.ManagerAddress == 0 {
			tr.ManagerAddress = sbs.ManagerAddress
		}
		if tr.BatteryAddress == 0 {
			tr.BatteryAddress = sbs.BatteryAddress
		}

		for ti := range b.Targets {
			if b.Targets[ti].Protocol == "" {
				b.Targets[ti].Protocol = ProtocolModbus
			}
		}

		// Poll zero values are resolved by the battery policy.
	}
}

// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	if cfg.Poller.HTTP.EventsPerMinute < 0 {
		return errors.New("config: http.events_per_minute must be >= 0")
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return errors.New("config: log rotation limits must be >= 0")
	}
	if len(cfg.Poller.Batteries) == 0 {
		return errors.New("config: at least one battery required")
	}

	ids := make(map[string]struct{})

	// key = endpoint | unit_id | base_slot
	blockOwner := make(map[string]string)

	for _, b := range cfg.Poller.Batteries {
		if b.ID == "" {
			return errors.New("config: battery id required")
		}
		if _, dup := ids[b.ID]; dup {
			return fmt.Errorf("battery %q: duplicate id", b.ID)
		}
		ids[b.ID] = struct{}{}

		// device_name sanity (ASCII only)
		for i := 0; i < len(b.DeviceName); i++ {
			if b.DeviceName[i] > 0x7F {
				return fmt.Errorf(
					"battery %q: device_name must contain ASCII characters only",
					b.ID,
				)
			}
		}

		if err := validateTransport(b.ID, b.Transport); err != nil {
			return err
		}
		if err := validatePoll(b.ID, b.Poll); err != nil {
			return err
		}

		// ------------------------------------------------------------
		// TARGET BLOCK VALIDATION
		// ------------------------------------------------------------

		for _, t := range b.Targets {
			if t.Endpoint == "" {
				return fmt.Errorf("battery %q: target endpoint required", b.ID)
			}
			switch t.Protocol {
			case "", ProtocolModbus, ProtocolIngest:
			default:
				return fmt.Errorf(
					"battery %q: target %q: unknown protocol %q",
					b.ID,
					t.Endpoint,
					t.Protocol,
				)
			}

			key := fmt.Sprintf("%s|%d|%d", t.Endpoint, t.UnitID, t.BaseSlot)
			if prev, exists := blockOwner[key]; exists {
				return fmt.Errorf(
					"base_slot collision: endpoint=%s unit_id=%d slot=%d used by batteries %q and %q",
					t.Endpoint,
					t.UnitID,
					t.BaseSlot,
					prev,
					b.ID,
				)
			}
			blockOwner[key] = b.ID
		}
	}

	return nil
}

func validateTransport(id string, tr TransportConfig) error {
	switch tr.Kind {
	case KindI2C:
		// empty bus selects the first adapter
	case KindModbusTCP:
		if tr.Endpoint == "" {
			return fmt.Errorf("battery %q: modbus-tcp transport requires endpoint", id)
		}
	case KindModbusRTU:
		if tr.Device == "" {
			return fmt.Errorf("battery %q: modbus-rtu transport requires device", id)
		}
		if tr.BaudRate < 0 {
			return fmt.Errorf("battery %q: baud_rate must be >= 0", id)
		}
	case "":
		return fmt.Errorf("battery %q: transport kind required", id)
	default:
		return fmt.Errorf("battery %q: unknown transport kind %q", id, tr.Kind)
	}

	if tr.TimeoutMs < 0 {
		return fmt.Errorf("battery %q: timeout_ms must be >= 0", id)
	}
	if tr.ManagerAddress > 0x7F || tr.BatteryAddress > 0x7F {
		return fmt.Errorf("battery %q: smbus addresses must fit in 7 bits", id)
	}
	if tr.ManagerAddress != 0 && tr.ManagerAddress == tr.BatteryAddress {
		return fmt.Errorf("battery %q: manager and battery addresses collide", id)
	}
	return nil
}

func validatePoll(id string, p PollConfig) error {
	if p.NormalIntervalMs < 0 || p.QuickIntervalMs < 0 || p.ReadDeadlineMs < 0 {
		return fmt.Errorf("battery %q: poll intervals must be >= 0", id)
	}
	if p.OverrideSeconds != nil && *p.OverrideSeconds < 0 {
		return fmt.Errorf("battery %q: override_seconds must be >= 0", id)
	}
	return nil
}

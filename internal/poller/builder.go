// internal/poller/builder.go
package poller

import (
	"fmt"
	"time"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
	"github.com/tamzrod/smartbattery-poller/internal/config"
	plog "github.com/tamzrod/smartbattery-poller/internal/log"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
	"github.com/tamzrod/smartbattery-poller/internal/smbus/i2cbus"
	smodbus "github.com/tamzrod/smartbattery-poller/internal/smbus/modbus"
)

// Options carries the process-wide collaborators of a battery.
type Options struct {
	Sinks     []battery.Sink
	PowerRoot battery.PowerRoot
	Observer  battery.Observer
}

// Build opens the battery transport and constructs its Poller.
// The returned closer releases the transport.
// Config must be validated and normalized.
func Build(b config.BatteryConfig, opts Options) (*Poller, func() error, error) {
	tr, closeFn, err := OpenTransport(b.Transport)
	if err != nil {
		return nil, nil, fmt.Errorf("poller: battery %q: %w", b.ID, err)
	}

	p, err := New(Config{
		BatteryID: b.ID,
		Transport: tr,
		Addresses: battery.Addresses{
			Manager: b.Transport.ManagerAddress,
			Battery: b.Transport.BatteryAddress,
		},
		Policy:    PolicyFromConfig(b.Poll),
		Sinks:     opts.Sinks,
		PowerRoot: opts.PowerRoot,
		Observer:  opts.Observer,
		Logger: plog.WithBattery("poller", b.ID).With().
			Str(plog.FieldTransport, b.Transport.Kind).
			Logger(),
	})
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}

// OpenTransport connects the configured SMBus transport.
func OpenTransport(tc config.TransportConfig) (smbus.Transport, func() error, error) {
	timeout := time.Duration(tc.TimeoutMs) * time.Millisecond

	switch tc.Kind {
	case config.KindI2C:
		t, err := i2cbus.Open(tc.Bus)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil

	case config.KindModbusTCP:
		t, err := smodbus.NewTCP(smodbus.TCPConfig{
			Endpoint: tc.Endpoint,
			UnitID:   tc.UnitID,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil

	case config.KindModbusRTU:
		t, err := smodbus.NewRTU(smodbus.RTUConfig{
			Device:   tc.Device,
			BaudRate: tc.BaudRate,
			UnitID:   tc.UnitID,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport kind %q", tc.Kind)
	}
}

// PolicyFromConfig converts millisecond config into a battery policy.
func PolicyFromConfig(pc config.PollConfig) battery.PolicyConfig {
	out := battery.PolicyConfig{
		NormalInterval:      time.Duration(pc.NormalIntervalMs) * time.Millisecond,
		QuickInterval:       time.Duration(pc.QuickIntervalMs) * time.Millisecond,
		ReadDeadline:        time.Duration(pc.ReadDeadlineMs) * time.Millisecond,
		BootPolls:           pc.BootPolls,
		MaxDeadlineRestarts: pc.MaxDeadlineRestarts,
	}
	if pc.OverrideSeconds != nil {
		d := time.Duration(*pc.OverrideSeconds) * time.Second
		out.Override = &d
	}
	return out
}

// internal/writer/builder.go
package writer

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/smartbattery-poller/internal/config"
	"github.com/tamzrod/smartbattery-poller/internal/writer/ingest"
	wmodbus "github.com/tamzrod/smartbattery-poller/internal/writer/modbus"
)

// BuildPlan converts one battery config into a write plan.
// Assumes config has already passed collision validation.
func BuildPlan(b config.BatteryConfig) (Plan, error) {
	if b.ID == "" {
		return Plan{}, errors.New("writer: battery id required")
	}

	plan := Plan{BatteryID: b.ID, DeviceName: b.DeviceName}
	for _, t := range b.Targets {
		protocol := t.Protocol
		if protocol == "" {
			protocol = config.ProtocolModbus
		}
		plan.Targets = append(plan.Targets, Target{
			Endpoint: t.Endpoint,
			Protocol: protocol,
			UnitID:   t.UnitID,
			BaseSlot: t.BaseSlot,
		})
	}
	return plan, nil
}

type closer interface{ Close() error }

// BuildEndpointClients creates one client per unique protocol and
// endpoint across all batteries.
func BuildEndpointClients(batteries []config.BatteryConfig, timeout time.Duration) (map[string]EndpointClient, func() error, error) {
	clients := make(map[string]EndpointClient)
	var closers []func() error

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	for _, b := range batteries {
		for _, t := range b.Targets {
			protocol := t.Protocol
			if protocol == "" {
				protocol = config.ProtocolModbus
			}
			key := clientKey(protocol, t.Endpoint)
			if _, ok := clients[key]; ok {
				continue
			}

			c, err := newClient(protocol, t.Endpoint, timeout)
			if err != nil {
				_ = closeAll()
				return nil, nil, fmt.Errorf("writer: endpoint %s: %w", t.Endpoint, err)
			}
			clients[key] = c
			closers = append(closers, c.(closer).Close)
		}
	}

	return clients, closeAll, nil
}

func newClient(protocol, endpoint string, timeout time.Duration) (EndpointClient, error) {
	switch protocol {
	case config.ProtocolModbus:
		return wmodbus.NewEndpointClient(wmodbus.Config{Endpoint: endpoint, Timeout: timeout})
	case config.ProtocolIngest:
		return ingest.NewEndpointClient(ingest.Config{Endpoint: endpoint, Timeout: timeout})
	default:
		return nil, fmt.Errorf("unknown protocol %q", protocol)
	}
}

// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tamzrod/smartbattery-poller/internal/sbs"
)

const sample = `
poller:
  http:
    listen: ":9105"
  batteries:
    - id: bat0
      device_name: "A-VERY-LONG-PACK-NAME"
      transport:
        kind: modbus-rtu
        device: /dev/ttyUSB0
        unit_id: 7
        battery_address: 0x0b
      poll:
        normal_interval_ms: 20000
        override_seconds: 0
      targets:
        - endpoint: "10.0.0.9:502"
          unit_id: 1
          base_slot: 2
log:
  level: debug
`

func TestLoad_ValidateNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poller.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	Normalize(cfg)

	b := cfg.Poller.Batteries[0]
	if b.DeviceName != "A-VERY-LONG-PACK" {
		t.Fatalf("device_name not truncated: %q", b.DeviceName)
	}
	if b.Transport.BaudRate != DefaultBaudRate {
		t.Fatalf("baud rate default not applied: %d", b.Transport.BaudRate)
	}
	if b.Transport.TimeoutMs != DefaultTimeoutMs {
		t.Fatalf("timeout default not applied: %d", b.Transport.TimeoutMs)
	}
	if b.Transport.ManagerAddress != sbs.ManagerAddress || b.Transport.BatteryAddress != sbs.BatteryAddress {
		t.Fatalf("addresses: %#x %#x", b.Transport.ManagerAddress, b.Transport.BatteryAddress)
	}
	if b.Poll.OverrideSeconds == nil || *b.Poll.OverrideSeconds != 0 {
		t.Fatalf("override_seconds presence lost")
	}
	if b.Targets[0].Protocol != ProtocolModbus {
		t.Fatalf("protocol default not applied: %q", b.Targets[0].Protocol)
	}
	if cfg.Log.Level != "debug" || cfg.Poller.HTTP.Listen != ":9105" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("poller:\n  batteriez: []\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

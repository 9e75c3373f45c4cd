// cmd/batterypoller/read.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/smartbattery-poller/internal/config"
	"github.com/tamzrod/smartbattery-poller/internal/poller"
	"github.com/tamzrod/smartbattery-poller/internal/sbs"
)

var (
	readBattery string
	readTimeout time.Duration
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Run one read cycle for a battery and print the snapshot as JSON",
	Args:  cobra.NoArgs,
	RunE:  runRead,
}

func init() {
	readCmd.Flags().StringVarP(&readBattery, "battery", "b", "", "battery id (defaults to the first battery)")
	readCmd.Flags().DurationVar(&readTimeout, "timeout", 30*time.Second, "give up after this long")
}

func runRead(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	bc, err := pickBattery(cfg, readBattery)
	if err != nil {
		return err
	}

	p, closeTransport, err := poller.Build(bc, poller.Options{})
	if err != nil {
		return err
	}
	defer closeTransport()

	ctx, cancel := context.WithTimeout(cmd.Context(), readTimeout)
	defer cancel()

	snap, res, err := p.ReadOnce(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", bc.ID, err)
	}

	var made string
	if d := sbs.ManufactureDate(snap.ManufactureDate); !d.IsZero() {
		made = d.Format(time.DateOnly)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Battery      string `json:"battery"`
		Result       string `json:"result"`
		Manufactured string `json:"manufactured,omitempty"`
		Data         any    `json:"snapshot"`
	}{bc.ID, res.String(), made, snap})
}

func pickBattery(cfg *config.Config, id string) (config.BatteryConfig, error) {
	if id == "" {
		return cfg.Poller.Batteries[0], nil
	}
	for _, b := range cfg.Poller.Batteries {
		if b.ID == id {
			return b, nil
		}
	}
	return config.BatteryConfig{}, fmt.Errorf("unknown battery %q", id)
}

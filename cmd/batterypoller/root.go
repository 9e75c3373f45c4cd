// cmd/batterypoller/root.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamzrod/smartbattery-poller/internal/config"
	plog "github.com/tamzrod/smartbattery-poller/internal/log"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "batterypoller",
	Short: "Smart battery poller",
	Long: `batterypoller reads Smart Battery Data registers over SMBus (Linux I2C or
a Modbus gateway), publishes the validated snapshot over HTTP and Prometheus,
and mirrors it into Modbus register memory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	rootCmd.AddCommand(runCmd, validateCmd, readCmd)
}

// loadConfig runs Load, Validate and Normalize, then configures logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	plog.Configure(plog.Config{
		Level:      cfg.Log.Level,
		Service:    cfg.Log.Service,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return cfg, nil
}

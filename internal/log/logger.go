// internal/log/logger.go
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// Config captures options for the process logger.
type Config struct {
	Level   string    // optional ("debug", "info", ...); falls back to LOG_LEVEL
	Output  io.Writer // defaults to os.Stdout, or File when set
	Service string    // attached to every entry

	// File enables a size-rotated log file.
	File       string
	MaxSizeMB  int // defaults to 10
	MaxBackups int
	MaxAgeDays int
}

const defaultService = "smartbattery-poller"

var (
	once sync.Once
	base zerolog.Logger
)

// New builds a logger from cfg without touching global state.
func New(cfg Config) zerolog.Logger {
	w := cfg.Output
	switch {
	case w != nil:
	case cfg.File != "":
		w = rotatingFile(cfg)
	default:
		w = os.Stdout
	}
	service := cfg.Service
	if service == "" {
		service = defaultService
	}
	return zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str(FieldService, service).
		Logger()
}

const defaultMaxSizeMB = 10

func rotatingFile(cfg Config) *lumberjack.Logger {
	size := cfg.MaxSizeMB
	if size <= 0 {
		size = defaultMaxSizeMB
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    size,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}

// ParseLevel resolves a level name, then LOG_LEVEL, then info.
func ParseLevel(name string) zerolog.Level {
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if name != "" {
		if l, err := zerolog.ParseLevel(name); err == nil && l != zerolog.NoLevel {
			return l
		}
	}
	return zerolog.InfoLevel
}

// Configure initialises the base logger exactly once.
func Configure(cfg Config) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		base = New(cfg)
	})
}

// Base returns the configured base logger.
func Base() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent returns a child logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

// WithBattery returns a component logger tagged with a battery id.
func WithBattery(component, id string) zerolog.Logger {
	return WithComponent(component).With().Str(FieldBattery, id).Logger()
}

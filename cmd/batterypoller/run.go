// cmd/batterypoller/run.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
	"github.com/tamzrod/smartbattery-poller/internal/config"
	"github.com/tamzrod/smartbattery-poller/internal/httpapi"
	plog "github.com/tamzrod/smartbattery-poller/internal/log"
	"github.com/tamzrod/smartbattery-poller/internal/metrics"
	"github.com/tamzrod/smartbattery-poller/internal/poller"
	"github.com/tamzrod/smartbattery-poller/internal/writer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll every configured battery until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

const shutdownGrace = 5 * time.Second

func run(ctx context.Context, cfg *config.Config) error {
	log := plog.WithComponent("main")
	collector := metrics.New()

	// --------------------
	// Writer clients (shared per endpoint)
	// --------------------

	clients, closeWriters, err := writer.BuildEndpointClients(
		cfg.Poller.Batteries,
		time.Duration(config.DefaultTimeoutMs)*time.Millisecond,
	)
	if err != nil {
		return err
	}
	defer closeWriters()

	// --------------------
	// Build per-battery pipelines
	// --------------------

	pipes, closeTransports, err := buildPipelines(cfg.Poller.Batteries, clients, collector)
	if err != nil {
		return err
	}
	defer closeTransports()

	g, ctx := errgroup.WithContext(ctx)
	apiBatteries := make(map[string]httpapi.Battery, len(pipes))

	for _, pp := range pipes {
		// ---- channel between poller and writer ----
		out := make(chan poller.Update)

		g.Go(func() error {
			pp.writer.Run(ctx, out, pp.wlog)
			return nil
		})
		g.Go(func() error { return pp.poller.Run(ctx, out) })

		apiBatteries[pp.id] = pp.poller
	}

	// --------------------
	// HTTP surface (optional)
	// --------------------

	if addr := cfg.Poller.HTTP.Listen; addr != "" {
		api := httpapi.New(httpapi.Config{
			Batteries:       apiBatteries,
			Metrics:         collector.Handler(),
			Logger:          plog.WithComponent("http"),
			EventsPerMinute: cfg.Poller.HTTP.EventsPerMinute,
		})
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info().Str("listen", addr).Msg("http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	log.Info().Int("batteries", len(pipes)).Msg("poller running")
	err = g.Wait()
	log.Info().Msg("poller stopped")
	return err
}

// ---- PIPELINES ----

type pipeline struct {
	id     string
	poller *poller.Poller
	writer *writer.Writer
	wlog   zerolog.Logger
}

// buildPoller is swapped in tests.
var buildPoller = poller.Build

// buildPipelines builds every battery before any of them runs. On error
// the transports opened so far are closed.
func buildPipelines(
	batteries []config.BatteryConfig,
	clients map[string]writer.EndpointClient,
	collector *metrics.Collector,
) ([]pipeline, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	pipes := make([]pipeline, 0, len(batteries))
	for _, bc := range batteries {
		mb := collector.Battery(bc.ID)

		// ---- poller ----
		p, closeTransport, err := buildPoller(bc, poller.Options{
			Sinks:     []battery.Sink{mb},
			PowerRoot: mb,
			Observer:  mb,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, closeTransport)

		// ---- writer ----
		plan, err := writer.BuildPlan(bc)
		if err != nil {
			closeAll()
			return nil, nil, err
		}

		pipes = append(pipes, pipeline{
			id:     bc.ID,
			poller: p,
			writer: writer.New(plan, clients, collector),
			wlog:   plog.WithBattery("writer", bc.ID),
		})
	}
	return pipes, closeAll, nil
}

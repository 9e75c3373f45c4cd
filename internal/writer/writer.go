// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tamzrod/smartbattery-poller/internal/poller"
	"github.com/tamzrod/smartbattery-poller/internal/status"
)

// Writer encodes battery snapshots and fans the block out to every
// target of one battery.
type Writer struct {
	plan     Plan
	blocks   []*blockWriter
	reporter Reporter
}

// New builds a writer. clients is keyed by protocol and endpoint
// (see BuildEndpointClients).
func New(plan Plan, clients map[string]EndpointClient, reporter Reporter) *Writer {
	w := &Writer{plan: plan, reporter: reporter}
	for _, t := range plan.Targets {
		w.blocks = append(w.blocks, newBlockWriter(t, clients[clientKey(t.Protocol, t.Endpoint)]))
	}
	return w
}

// Write delivers one update to all targets.
func (w *Writer) Write(u poller.Update) error {
	if len(w.blocks) == 0 {
		return nil
	}

	regs := status.Encode(u.Snapshot, w.plan.DeviceName)

	var errs []string
	for _, bw := range w.blocks {
		if err := bw.Write(regs); err != nil {
			errs = append(errs, fmt.Sprintf(
				"writer: ep=%s unit=%d slot=%d err=%v",
				bw.target.Endpoint, bw.target.UnitID, bw.target.BaseSlot, err,
			))
			if w.reporter != nil {
				w.reporter.WriteFailed(w.plan.BatteryID, bw.target.Endpoint)
			}
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}

// Run writes every update received on in until ctx is done or in is
// closed. Failures are logged; the next update retries.
func (w *Writer) Run(ctx context.Context, in <-chan poller.Update, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-in:
			if !ok {
				return
			}
			if err := w.Write(u); err != nil {
				log.Warn().Err(err).Msg("battery block write failed")
			}
		}
	}
}

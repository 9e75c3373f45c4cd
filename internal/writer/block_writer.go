// internal/writer/block_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/smartbattery-poller/internal/status"
)

// blockWriter delivers one battery block to one target.
// The first write asserts the full block; later writes send only the
// changed contiguous runs.
type blockWriter struct {
	target Target
	cli    EndpointClient

	needFull bool
	last     []uint16
}

func newBlockWriter(t Target, cli EndpointClient) *blockWriter {
	return &blockWriter{
		target:   t,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last:     make([]uint16, status.SlotsPerBattery),
	}
}

// Write delivers regs. On any write failure, the next call re-asserts
// the full block.
func (bw *blockWriter) Write(regs []uint16) error {
	if bw.cli == nil {
		return fmt.Errorf("block writer: missing client for endpoint %s", bw.target.Endpoint)
	}
	if len(regs) != status.SlotsPerBattery {
		return fmt.Errorf("block writer: expected %d registers, got %d", status.SlotsPerBattery, len(regs))
	}

	base := bw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if bw.needFull {
		if err := bw.cli.WriteRegisters(bw.target.UnitID, base, regs); err != nil {
			return fmt.Errorf("block writer: full block write failed: %w", err)
		}
		bw.needFull = false
		copy(bw.last, regs)
		return nil
	}

	var errs []string
	for _, r := range changedRuns(bw.last, regs) {
		chunk := regs[r.start:r.end]
		if err := bw.cli.WriteRegisters(bw.target.UnitID, base+uint16(r.start), chunk); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d-%d write failed: %v", r.start, r.end-1, err))
			continue
		}
		copy(bw.last[r.start:r.end], chunk)
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next success.
		bw.needFull = true
		return errors.New("block writer: " + strings.Join(errs, " | "))
	}
	return nil
}

func (bw *blockWriter) baseAddr() uint16 {
	// Each battery owns a fixed SlotsPerBattery block.
	return bw.target.BaseSlot * status.SlotsPerBattery
}

type run struct{ start, end int }

// changedRuns returns the half-open index ranges where next differs
// from prev.
func changedRuns(prev, next []uint16) []run {
	var out []run
	start := -1
	for i := range next {
		diff := i >= len(prev) || prev[i] != next[i]
		switch {
		case diff && start < 0:
			start = i
		case !diff && start >= 0:
			out = append(out, run{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, run{start, len(next)})
	}
	return out
}

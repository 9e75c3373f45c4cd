// internal/metrics/battery.go
package metrics

import (
	"fmt"
	"strconv"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// Battery adapts a Collector to one battery's Observer, Sink and
// PowerRoot hooks. Methods only touch Prometheus vectors and never block.
type Battery struct {
	c  *Collector
	id string
}

var (
	_ battery.Observer  = (*Battery)(nil)
	_ battery.Sink      = (*Battery)(nil)
	_ battery.PowerRoot = (*Battery)(nil)
)

func cmdLabel(cmd uint8) string { return fmt.Sprintf("0x%02X", cmd) }

func (b *Battery) Retry(cmd uint8, s smbus.Status) {
	b.c.retries.WithLabelValues(b.id, cmdLabel(cmd), s.String()).Inc()
}

func (b *Battery) Exhausted(cmd uint8, _ smbus.Status) {
	b.c.exhausted.WithLabelValues(b.id, cmdLabel(cmd)).Inc()
}

func (b *Battery) NonRecoverable(cmd uint8, s smbus.Status) {
	b.c.nonRecoverable.WithLabelValues(b.id, cmdLabel(cmd), s.String()).Inc()
}

func (b *Battery) DeadlineExpired() {
	b.c.deadlines.WithLabelValues(b.id).Inc()
}

func (b *Battery) CycleFinished(r battery.CycleResult) {
	b.c.cycles.WithLabelValues(b.id, r.String()).Inc()
}

func (b *Battery) ACChanged(connected bool) {
	b.c.acTransitions.WithLabelValues(b.id, strconv.FormatBool(connected)).Inc()
}

// Publish mirrors a snapshot into the gauges.
func (b *Battery) Publish(s battery.Snapshot) {
	c := b.c
	c.present.WithLabelValues(b.id).Set(bool01(s.Present))
	c.acConnected.WithLabelValues(b.id).Set(bool01(s.ACConnected))
	c.remaining.WithLabelValues(b.id).Set(float64(s.RemainingCapacity))
	c.fullCharge.WithLabelValues(b.id).Set(float64(s.FullChargeCapacity))
	c.voltage.WithLabelValues(b.id).Set(float64(s.Voltage))
	c.amperage.WithLabelValues(b.id).Set(float64(s.Amperage))
	c.cycleCount.WithLabelValues(b.id).Set(float64(s.CycleCount))
	c.quickPoll.WithLabelValues(b.id).Set(bool01(s.Diagnostics.QuickPoll))
	c.stalled.WithLabelValues(b.id).Set(bool01(s.Diagnostics.UserClientStalled))
	c.permanentFail.WithLabelValues(b.id).Set(bool01(s.Diagnostics.PermanentFailure))

	// 0.1 K; a cleared snapshot reports 0 and is left out
	if s.Temperature > 0 {
		c.temperature.WithLabelValues(b.id).Set(float64(s.Temperature)/10 - 273.15)
	}
}

func bool01(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

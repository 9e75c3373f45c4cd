// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartbattery"

// Collector owns every poller metric on its own registry.
type Collector struct {
	reg *prometheus.Registry

	retries        *prometheus.CounterVec
	exhausted      *prometheus.CounterVec
	nonRecoverable *prometheus.CounterVec
	deadlines      *prometheus.CounterVec
	cycles         *prometheus.CounterVec
	acTransitions  *prometheus.CounterVec
	writeFailures  *prometheus.CounterVec

	present       *prometheus.GaugeVec
	acConnected   *prometheus.GaugeVec
	remaining     *prometheus.GaugeVec
	fullCharge    *prometheus.GaugeVec
	voltage       *prometheus.GaugeVec
	amperage      *prometheus.GaugeVec
	temperature   *prometheus.GaugeVec
	cycleCount    *prometheus.GaugeVec
	quickPoll     *prometheus.GaugeVec
	stalled       *prometheus.GaugeVec
	permanentFail *prometheus.GaugeVec
}

// New registers the poller metrics plus the Go and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	counter := func(sub, name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: sub,
			Name:      name,
			Help:      help,
		}, append([]string{"battery"}, labels...))
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "battery",
			Name:      name,
			Help:      help,
		}, []string{"battery"})
	}

	return &Collector{
		reg: reg,

		retries:        counter("smbus", "retries_total", "SMBus reads retried, by command and status", "cmd", "status"),
		exhausted:      counter("smbus", "retry_exhausted_total", "SMBus reads that spent the retry budget", "cmd"),
		nonRecoverable: counter("smbus", "non_recoverable_total", "SMBus reads that failed with a non-retryable status", "cmd", "status"),
		deadlines:      counter("poll", "deadline_expired_total", "Read cycles cut short by the overall deadline"),
		cycles:         counter("poll", "cycles_total", "Finished read cycles by result", "result"),
		acTransitions:  counter("power", "ac_transitions_total", "Published AC state changes", "connected"),
		writeFailures:  counter("writer", "failures_total", "Failed register block writes", "endpoint"),

		present:       gauge("present", "1 when a battery is installed"),
		acConnected:   gauge("ac_connected", "1 when AC power is present"),
		remaining:     gauge("remaining_capacity_mah", "Remaining capacity"),
		fullCharge:    gauge("full_charge_capacity_mah", "Full charge capacity"),
		voltage:       gauge("voltage_millivolts", "Pack voltage"),
		amperage:      gauge("average_current_milliamps", "Average current, negative while discharging"),
		temperature:   gauge("temperature_celsius", "Pack temperature"),
		cycleCount:    gauge("cycle_count", "Charge cycle count"),
		quickPoll:     gauge("quick_poll", "1 while the quick polling interval is selected"),
		stalled:       gauge("user_client_stalled", "1 while polling is halted by a user client"),
		permanentFail: gauge("permanent_failure", "1 after a permanent battery failure"),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// WriteFailed implements writer.Reporter.
func (c *Collector) WriteFailed(batteryID, endpoint string) {
	c.writeFailures.WithLabelValues(batteryID, endpoint).Inc()
}

// Battery returns the per-battery adapter.
func (c *Collector) Battery(id string) *Battery {
	return &Battery{c: c, id: id}
}

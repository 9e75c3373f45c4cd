// internal/battery/policy.go
package battery

import "time"

// Defaults for PolicyConfig zero values.
const (
	DefaultNormalInterval      = 30 * time.Second
	DefaultQuickInterval       = 1 * time.Second
	DefaultReadDeadline        = 10 * time.Second
	DefaultBootPolls           = 5
	DefaultMaxDeadlineRestarts = 10
)

// quickThresholdPercent is the charge level below which an AC
// connected battery is polled quickly.
const quickThresholdPercent = 5

// PolicyConfig is the per-battery polling configuration.
// Zero values take the defaults; a negative BootPolls or
// MaxDeadlineRestarts disables the feature.
type PolicyConfig struct {
	NormalInterval      time.Duration
	QuickInterval       time.Duration
	ReadDeadline        time.Duration
	BootPolls           int
	MaxDeadlineRestarts int

	// Override pins the interval. Zero means back-to-back cycles.
	// Nil leaves the interval adaptive.
	Override *time.Duration
}

// Policy decides the polling cadence.
type Policy struct {
	normal time.Duration
	quick  time.Duration
	fast   bool

	overridden bool
	override   time.Duration

	bootCountdown int

	ReadDeadline        time.Duration
	MaxDeadlineRestarts int
}

// NewPolicy applies defaults to cfg.
func NewPolicy(cfg PolicyConfig) *Policy {
	p := &Policy{
		normal:              cfg.NormalInterval,
		quick:               cfg.QuickInterval,
		bootCountdown:       cfg.BootPolls,
		ReadDeadline:        cfg.ReadDeadline,
		MaxDeadlineRestarts: cfg.MaxDeadlineRestarts,
	}
	if p.normal <= 0 {
		p.normal = DefaultNormalInterval
	}
	if p.quick <= 0 {
		p.quick = DefaultQuickInterval
	}
	if p.ReadDeadline <= 0 {
		p.ReadDeadline = DefaultReadDeadline
	}
	switch {
	case p.bootCountdown == 0:
		p.bootCountdown = DefaultBootPolls
	case p.bootCountdown < 0:
		p.bootCountdown = 0
	}
	switch {
	case p.MaxDeadlineRestarts == 0:
		p.MaxDeadlineRestarts = DefaultMaxDeadlineRestarts
	case p.MaxDeadlineRestarts < 0:
		p.MaxDeadlineRestarts = 0
	}
	if cfg.Override != nil {
		p.overridden = true
		p.override = *cfg.Override
		if p.override < 0 {
			p.override = 0
		}
	}
	return p
}

// Adapt selects the interval class from a capacity reading and
// reports whether quick polling is active. It is a no-op under
// override.
func (p *Policy) Adapt(remaining, full uint16, ac bool) bool {
	if p.overridden {
		return p.fast
	}
	if full == 0 {
		p.fast = false
		return false
	}
	p.fast = ac && 100*uint32(remaining)/uint32(full) < quickThresholdPercent
	return p.fast
}

// Quick reports whether the quick interval is selected.
func (p *Policy) Quick() bool { return p.fast }

// Overridden reports whether a diagnostic override is active.
func (p *Policy) Overridden() bool { return p.overridden }

// Continuous reports whether cycles run back to back.
func (p *Policy) Continuous() bool { return p.overridden && p.override == 0 }

// Interval is the delay before the next periodic poll.
func (p *Policy) Interval() time.Duration {
	switch {
	case p.overridden:
		return p.override
	case p.fast:
		return p.quick
	default:
		return p.normal
	}
}

// SetNormal replaces the normal interval and drops back to it.
// Ignored under override.
func (p *Policy) SetNormal(d time.Duration) bool {
	if p.overridden || d <= 0 {
		return false
	}
	p.normal = d
	p.fast = false
	return true
}

// Booting reports whether the boot burst is still running.
func (p *Policy) Booting() bool { return p.bootCountdown > 0 }

// consumeBoot counts one completed boot cycle.
func (p *Policy) consumeBoot() {
	if p.bootCountdown > 0 {
		p.bootCountdown--
	}
}

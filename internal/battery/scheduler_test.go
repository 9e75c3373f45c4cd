// internal/battery/scheduler_test.go
package battery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/smartbattery-poller/internal/sbs"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

func withPolicy(p PolicyConfig) func(*Config) {
	return func(c *Config) { c.Policy = p }
}

func TestNew_Validation(t *testing.T) {
	clock := &manualClock{}
	bus := &fakeBus{}

	_, err := New(Config{Clock: clock})
	assert.EqualError(t, err, "battery: bus required")

	_, err = New(Config{Bus: bus})
	assert.EqualError(t, err, "battery: clock required")

	_, err = New(Config{Bus: bus, Clock: clock, Addresses: Addresses{Manager: 0x80, Battery: 0x0B}})
	assert.Error(t, err)

	_, err = New(Config{Bus: bus, Clock: clock, Addresses: Addresses{Manager: 0x0B, Battery: 0x0B}})
	assert.Error(t, err)

	s, err := New(Config{Bus: bus, Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, DefaultAddresses, s.m.addrs)
}

func TestScheduler_RelocatedAddresses(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Addresses = Addresses{Manager: 0x12, Battery: 0x16}
	})

	h.s.Poll(PathExisting)
	assert.Equal(t, uint8(0x12), h.pending().Address)
	assert.Equal(t, sbs.CmdSystemStateCont, h.pending().Command)
}

func TestScheduler_DeadlineRestartsFromNewPath(t *testing.T) {
	h := newHarness(t)
	d := healthyDevice()

	h.s.Start()
	assert.True(t, h.deadline().armed)
	assert.Equal(t, DefaultReadDeadline, h.deadline().d)
	h.steps(d, 3)
	require.Equal(t, sbs.CmdManufacturerName, h.pending().Command)

	require.True(t, h.deadline().fire())
	assert.Equal(t, 1, h.count("overall read timeout expired"))
	assert.Equal(t, 1, h.obs.deadlines)
	assert.True(t, h.deadline().armed, "re-armed while the restart is pending")
	assert.Equal(t, DefaultMaxDeadlineRestarts-1, h.s.restartsLeft)

	snap := h.sink.last()
	assert.Equal(t, ErrorOverallTimeoutExpired, snap.Diagnostics.LatestErrorType)
	assert.Equal(t, uint32(1), snap.Diagnostics.Errors.OverallTimeout)

	// late completion carries a name that must not be applied
	h.step(d)
	assert.Equal(t, sbs.CmdSystemStateCont, h.pending().Command)
	assert.Equal(t, PathNew, h.s.m.Path())
	assert.Empty(t, h.sink.last().Manufacturer)

	h.run(d)
	assert.Equal(t, "ACME", h.sink.last().Manufacturer)
	assert.Equal(t, DefaultMaxDeadlineRestarts, h.s.restartsLeft, "budget resets at terminal")
	assert.False(t, h.deadline().armed)
}

func TestScheduler_DeadlineRestartBudget(t *testing.T) {
	h := newHarness(t, withPolicy(PolicyConfig{MaxDeadlineRestarts: 2}))

	h.s.Start()
	require.True(t, h.deadline().fire())
	require.True(t, h.deadline().fire())
	require.True(t, h.deadline().fire())

	assert.False(t, h.deadline().armed)
	assert.Equal(t, 3, h.obs.deadlines)
	assert.Equal(t, 1, h.count("deadline restart budget spent"))
	assert.Equal(t, uint32(3), h.s.Snapshot().Diagnostics.Errors.OverallTimeout)
}

func TestScheduler_DeadlinePublishesDiagnostic(t *testing.T) {
	h := newHarness(t, withPolicy(PolicyConfig{MaxDeadlineRestarts: 1}))

	h.s.Start()
	before := len(h.sink.published)
	require.True(t, h.deadline().fire())
	require.True(t, h.deadline().fire())

	// one publish per expiry, including the one after the budget is spent
	require.Len(t, h.sink.published, before+2)
	last := h.sink.last()
	assert.Equal(t, ErrorOverallTimeoutExpired, last.Diagnostics.LatestErrorType)
	assert.Equal(t, uint32(2), last.Diagnostics.Errors.OverallTimeout)
	assert.Equal(t, h.s.Snapshot(), last)
}

func TestScheduler_QuickIntervalWhenLowOnAC(t *testing.T) {
	h := newHarness(t)
	d := healthyDevice()
	d.words[bat(sbs.CmdRemainingCapacity)] = 200
	d.words[bat(sbs.CmdFullChargeCapacity)] = 5000

	h.s.Poll(PathExisting)
	h.run(d)
	assert.True(t, h.sink.last().Diagnostics.QuickPoll)
	assert.Equal(t, DefaultQuickInterval, h.pollTimer().d)

	d.words[bat(sbs.CmdRemainingCapacity)] = 250
	h.s.Poll(PathExisting)
	h.run(d)
	assert.False(t, h.sink.last().Diagnostics.QuickPoll)
	assert.Equal(t, DefaultNormalInterval, h.pollTimer().d)

	d.words[bat(sbs.CmdRemainingCapacity)] = 200
	d.words[mgr(sbs.CmdSystemStateCont)] = 0
	h.s.Poll(PathExisting)
	h.run(d)
	assert.False(t, h.sink.last().Diagnostics.QuickPoll)
	assert.Equal(t, DefaultNormalInterval, h.pollTimer().d)
}

func TestScheduler_BootBurstThenIdleWhenFullOnAC(t *testing.T) {
	h := newHarness(t)
	d := healthyDevice()
	d.words[bat(sbs.CmdBatteryStatus)] = sbs.FullyChargedBit

	h.s.Start()
	for i := 0; i < DefaultBootPolls; i++ {
		h.run(d)
		require.True(t, h.pollTimer().armed, "boot cycle %d", i)
		require.True(t, h.pollTimer().fire())
	}
	h.run(d)

	assert.False(t, h.pollTimer().armed)
	assert.Equal(t, 1, h.count("fully charged on ac; letting poll timer expire"))
	assert.Equal(t, DefaultBootPolls+1, h.obs.cycles[CycleComplete])
}

func TestScheduler_KeepsPollingOnBattery(t *testing.T) {
	h := newHarness(t, withPolicy(PolicyConfig{BootPolls: -1}))
	d := healthyDevice()
	d.words[bat(sbs.CmdBatteryStatus)] = sbs.FullyChargedBit
	d.words[mgr(sbs.CmdSystemStateCont)] = 0

	h.s.Poll(PathExisting)
	h.run(d)
	assert.True(t, h.pollTimer().armed)
}

func TestScheduler_ContinuousOverride(t *testing.T) {
	zero := time.Duration(0)
	h := newHarness(t, withPolicy(PolicyConfig{Override: &zero}))
	d := healthyDevice()

	h.s.Poll(PathExisting)
	h.steps(d, len(existingReads()))

	assert.Equal(t, 1, h.obs.cycles[CycleComplete])
	assert.True(t, h.s.m.Active(), "next cycle starts immediately")
	assert.Equal(t, PathNew, h.s.m.Path())
	assert.Equal(t, sbs.CmdSystemStateCont, h.pending().Command)
	assert.False(t, h.pollTimer().armed)
}

func TestScheduler_FixedOverrideDisablesAdaptation(t *testing.T) {
	seven := 7 * time.Second
	h := newHarness(t, withPolicy(PolicyConfig{Override: &seven}))
	d := healthyDevice()
	d.words[bat(sbs.CmdRemainingCapacity)] = 10
	d.words[bat(sbs.CmdBatteryStatus)] = sbs.FullyChargedBit

	assert.False(t, h.s.SetPollingInterval(time.Minute))

	for i := 0; i < DefaultBootPolls+2; i++ {
		h.s.Poll(PathExisting)
		h.run(d)
		require.True(t, h.pollTimer().armed, "override always re-arms")
		assert.Equal(t, seven, h.pollTimer().d)
	}
	assert.False(t, h.sink.last().Diagnostics.QuickPoll)
}

func TestScheduler_SetPollingInterval(t *testing.T) {
	h := newHarness(t)
	d := healthyDevice()

	assert.True(t, h.s.SetPollingInterval(45*time.Second))
	assert.False(t, h.s.SetPollingInterval(0))

	h.s.Poll(PathExisting)
	h.run(d)
	assert.Equal(t, 45*time.Second, h.pollTimer().d)
}

func TestScheduler_PollTimerIgnoredWhileActive(t *testing.T) {
	h := newHarness(t)
	d := healthyDevice()

	h.s.Poll(PathExisting)
	h.steps(d, 2)
	h.s.pollTimeout()

	assert.False(t, h.s.m.cyc.reboot)
}

func TestScheduler_UserClientStall(t *testing.T) {
	h := newHarness(t)
	d := healthyDevice()

	h.s.Start()
	h.steps(d, 3)

	h.s.SetUserClientStalled(true)
	assert.True(t, h.s.Stalled())
	assert.False(t, h.pollTimer().armed)
	assert.False(t, h.deadline().armed)
	assert.True(t, h.sink.last().Diagnostics.UserClientStalled)

	h.step(d)
	assert.False(t, h.s.m.Active())
	assert.Equal(t, 1, h.obs.cycles[CycleCancelled])

	submitted := len(h.bus.submitted)
	assert.False(t, h.s.Poll(PathExisting))
	h.s.BatteryInserted()
	assert.Len(t, h.bus.submitted, submitted, "no bus activity while stalled")

	h.s.SetUserClientStalled(false)
	assert.False(t, h.sink.last().Diagnostics.UserClientStalled)
	assert.True(t, h.s.m.Active())
	assert.Equal(t, PathNew, h.s.m.Path())

	h.run(d)
	assert.Equal(t, 1, h.obs.cycles[CycleComplete])
}

func TestScheduler_StopHaltsTimers(t *testing.T) {
	h := newHarness(t)
	d := healthyDevice()

	h.s.Start()
	h.steps(d, 2)
	h.s.Stop()

	assert.False(t, h.deadline().armed)
	assert.False(t, h.pollTimer().armed)

	h.step(d)
	assert.False(t, h.s.m.Active())
}

func TestScheduler_StartClearsSnapshot(t *testing.T) {
	h := newHarness(t)

	h.s.Start()
	require.Len(t, h.sink.published, 1)
	assert.Equal(t, Snapshot{}, h.sink.published[0])
	assert.Equal(t, smbus.ProtocolReadWord, h.pending().Protocol)
}

// internal/poller/poller_test.go
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
	"github.com/tamzrod/smartbattery-poller/internal/config"
	"github.com/tamzrod/smartbattery-poller/internal/sbs"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---- fakes ----

type regKey struct{ addr, cmd uint8 }

// fakeTransport answers from register tables. Unknown registers report
// an unsupported protocol so the driver falls back without retrying.
type fakeTransport struct {
	mu     sync.Mutex
	words  map[regKey]uint16
	blocks map[regKey]string
	reads  int
}

func (f *fakeTransport) Do(ctx context.Context, tx *smbus.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++

	k := regKey{tx.Address, tx.Command}
	switch tx.Protocol {
	case smbus.ProtocolReadWord:
		v, ok := f.words[k]
		if !ok {
			tx.Status = smbus.StatusHostUnsupportedProtocol
			return
		}
		tx.Status = smbus.StatusOK
		tx.Data = []byte{byte(v), byte(v >> 8)}
	case smbus.ProtocolReadBlock:
		s, ok := f.blocks[k]
		if !ok {
			tx.Status = smbus.StatusHostUnsupportedProtocol
			return
		}
		tx.Status = smbus.StatusOK
		tx.Data = []byte(s)
	}
}

func (f *fakeTransport) set(k regKey, v uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words[k] = v
}

func (f *fakeTransport) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func healthyTransport() *fakeTransport {
	b := func(cmd uint8) regKey { return regKey{sbs.BatteryAddress, cmd} }
	m := func(cmd uint8) regKey { return regKey{sbs.ManagerAddress, cmd} }
	return &fakeTransport{
		words: map[regKey]uint16{
			m(sbs.CmdSystemStateCont):    sbs.ACPresentBit,
			m(sbs.CmdSystemState):        sbs.PresentBatteryABit,
			b(sbs.CmdBatteryStatus):      0,
			b(sbs.CmdRemainingCapacity):  3000,
			b(sbs.CmdFullChargeCapacity): 4000,
			b(sbs.CmdDesignCapacity):     4200,
			b(sbs.CmdVoltage):            11800,
			b(sbs.CmdAverageCurrent):     0xFF9C, // -100 mA
			b(sbs.CmdAverageTimeToEmpty): 120,
			b(sbs.CmdAverageTimeToFull):  65535,
		},
		blocks: map[regKey]string{
			b(sbs.CmdDeviceName): "PK-9",
		},
	}
}

type atomicObserver struct {
	complete, absent atomic.Int32
}

func (o *atomicObserver) Retry(uint8, smbus.Status)          {}
func (o *atomicObserver) Exhausted(uint8, smbus.Status)      {}
func (o *atomicObserver) NonRecoverable(uint8, smbus.Status) {}
func (o *atomicObserver) DeadlineExpired()                   {}
func (o *atomicObserver) CycleFinished(r battery.CycleResult) {
	switch r {
	case battery.CycleComplete:
		o.complete.Add(1)
	case battery.CycleAbsent:
		o.absent.Add(1)
	}
}

func newPoller(t *testing.T, tr smbus.Transport, mut func(*Config)) *Poller {
	t.Helper()
	cfg := Config{
		BatteryID: "bat0",
		Transport: tr,
		Logger:    zerolog.Nop(),
		Sleep:     func(time.Duration) {},
	}
	if mut != nil {
		mut(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

// waitFor receives updates until pred holds.
func waitFor(t *testing.T, ch <-chan Update, pred func(battery.Snapshot) bool) Update {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case u := <-ch:
			if pred(u.Snapshot) {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}

// ---- tests ----

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Transport: healthyTransport()})
	assert.Error(t, err)

	_, err = New(Config{BatteryID: "b"})
	assert.Error(t, err)

	_, err = New(Config{
		BatteryID: "b",
		Transport: healthyTransport(),
		Addresses: battery.Addresses{Manager: 0x0B, Battery: 0x0B},
	})
	assert.Error(t, err)
}

func TestReadOnce_Healthy(t *testing.T) {
	p := newPoller(t, healthyTransport(), nil)

	snap, res, err := p.ReadOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, battery.CycleComplete, res)

	assert.True(t, snap.Present)
	assert.True(t, snap.ACConnected)
	assert.Equal(t, uint16(3000), snap.RemainingCapacity)
	assert.Equal(t, uint16(4000), snap.FullChargeCapacity)
	assert.Equal(t, int16(-100), snap.Amperage)
	assert.Equal(t, uint16(120), snap.TimeRemaining)
	assert.Equal(t, "PK-9", snap.DeviceName)
	assert.Equal(t, snap.RemainingCapacity, snap.Legacy.CurrentCharge)
}

func TestReadOnce_Absent(t *testing.T) {
	tr := healthyTransport()
	tr.set(regKey{sbs.ManagerAddress, sbs.CmdSystemState}, 0)

	p := newPoller(t, tr, nil)
	snap, res, err := p.ReadOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, battery.CycleAbsent, res)
	assert.False(t, snap.Present)
	assert.Zero(t, snap.RemainingCapacity)
}

func TestReadOnce_ContextCancelled(t *testing.T) {
	p := newPoller(t, healthyTransport(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.ReadOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ForwardsLatestAndStops(t *testing.T) {
	p := newPoller(t, healthyTransport(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Update, 1)
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, out) }()

	u := waitFor(t, out, func(s battery.Snapshot) bool { return s.Legacy.Capacity == 4000 })
	assert.Equal(t, "bat0", u.BatteryID)
	assert.False(t, u.At.IsZero())

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, uint16(3000), latest.Snapshot.RemainingCapacity)

	cancel()
	require.NoError(t, <-errc)

	assert.ErrorIs(t, p.BatteryInserted(context.Background()), ErrStopped)
	assert.Error(t, p.Run(context.Background(), nil))
}

func TestRun_LifecycleEvents(t *testing.T) {
	tr := healthyTransport()
	obs := &atomicObserver{}
	p := newPoller(t, tr, func(c *Config) { c.Observer = obs })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan Update, 1)
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, out) }()

	waitFor(t, out, func(s battery.Snapshot) bool { return s.Legacy.Capacity == 4000 })

	require.NoError(t, p.BatteryRemoved(ctx))
	waitFor(t, out, func(s battery.Snapshot) bool { return !s.Present && s.RemainingCapacity == 0 })

	require.NoError(t, p.SetUserClientStalled(ctx, true))
	waitFor(t, out, func(s battery.Snapshot) bool { return s.Diagnostics.UserClientStalled })

	applied, err := p.SetPollingInterval(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, p.SetUserClientStalled(ctx, false))
	waitFor(t, out, func(s battery.Snapshot) bool {
		return !s.Diagnostics.UserClientStalled && s.Legacy.Capacity == 4000
	})
	require.Eventually(t, func() bool { return obs.complete.Load() >= 2 }, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
}

func TestRun_PeriodicPolling(t *testing.T) {
	tr := healthyTransport()
	obs := &atomicObserver{}
	p := newPoller(t, tr, func(c *Config) {
		c.Observer = obs
		c.Policy = battery.PolicyConfig{NormalInterval: 5 * time.Millisecond}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, nil) }()

	require.Eventually(t, func() bool { return obs.complete.Load() >= 3 }, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
	assert.Positive(t, tr.readCount())
}

func TestPublisher_FansOutToSinks(t *testing.T) {
	var got atomic.Int32
	sink := sinkFunc(func(battery.Snapshot) { got.Add(1) })

	p := newPoller(t, healthyTransport(), func(c *Config) { c.Sinks = []battery.Sink{sink} })
	_, _, err := p.ReadOnce(context.Background())
	require.NoError(t, err)
	assert.Positive(t, got.Load())
}

type sinkFunc func(battery.Snapshot)

func (f sinkFunc) Publish(s battery.Snapshot) { f(s) }

func TestPolicyFromConfig(t *testing.T) {
	secs := 0
	pc := PolicyFromConfig(config.PollConfig{
		NormalIntervalMs: 20000,
		QuickIntervalMs:  500,
		ReadDeadlineMs:   3000,
		BootPolls:        2,
		OverrideSeconds:  &secs,
	})

	assert.Equal(t, 20*time.Second, pc.NormalInterval)
	assert.Equal(t, 500*time.Millisecond, pc.QuickInterval)
	assert.Equal(t, 3*time.Second, pc.ReadDeadline)
	assert.Equal(t, 2, pc.BootPolls)
	require.NotNil(t, pc.Override)
	assert.Zero(t, *pc.Override)

	assert.Nil(t, PolicyFromConfig(config.PollConfig{}).Override)
}

func TestOpenTransport_UnknownKind(t *testing.T) {
	_, _, err := OpenTransport(config.TransportConfig{Kind: "spi"})
	assert.Error(t, err)
}

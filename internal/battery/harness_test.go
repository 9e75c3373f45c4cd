// internal/battery/harness_test.go
package battery

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/smartbattery-poller/internal/sbs"
	"github.com/tamzrod/smartbattery-poller/internal/smbus"
)

// ---- fakes ----

type fakeBus struct {
	submitted []smbus.Transaction
}

func (f *fakeBus) Submit(t *smbus.Transaction) {
	f.submitted = append(f.submitted, *t)
}

type manualTimer struct {
	f      func()
	armed  bool
	d      time.Duration
	resets int
}

func (t *manualTimer) Reset(d time.Duration) {
	t.armed = true
	t.d = d
	t.resets++
}

func (t *manualTimer) Stop() { t.armed = false }

func (t *manualTimer) fire() bool {
	if !t.armed {
		return false
	}
	t.armed = false
	t.f()
	return true
}

type manualClock struct {
	timers []*manualTimer
}

func (c *manualClock) NewTimer(f func()) Timer {
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

type recordingSink struct {
	published []Snapshot
}

func (r *recordingSink) Publish(s Snapshot) { r.published = append(r.published, s) }

func (r *recordingSink) last() Snapshot {
	if len(r.published) == 0 {
		return Snapshot{}
	}
	return r.published[len(r.published)-1]
}

type recordingPower struct {
	changes []bool
}

func (r *recordingPower) ACChanged(c bool) { r.changes = append(r.changes, c) }

type countingObserver struct {
	retries, exhausted, nonRecoverable, deadlines int
	cycles                                        map[CycleResult]int
}

func (c *countingObserver) Retry(uint8, smbus.Status)          { c.retries++ }
func (c *countingObserver) Exhausted(uint8, smbus.Status)      { c.exhausted++ }
func (c *countingObserver) NonRecoverable(uint8, smbus.Status) { c.nonRecoverable++ }
func (c *countingObserver) CycleFinished(r CycleResult)        { c.cycles[r]++ }
func (c *countingObserver) DeadlineExpired()                   { c.deadlines++ }

// ---- scripted device ----

type regKey struct {
	addr, cmd uint8
}

// device answers reads from register tables. Scripted statuses and
// word sequences are consumed before the steady value.
type device struct {
	words  map[regKey]uint16
	blocks map[regKey]string
	seq    map[regKey][]uint16
	fail   map[regKey][]smbus.Status

	reads []uint8
}

func bat(cmd uint8) regKey { return regKey{sbs.BatteryAddress, cmd} }
func mgr(cmd uint8) regKey { return regKey{sbs.ManagerAddress, cmd} }

func healthyDevice() *device {
	return &device{
		words: map[regKey]uint16{
			mgr(sbs.CmdSystemStateCont):    sbs.ACPresentBit,
			mgr(sbs.CmdSystemState):        sbs.PresentBatteryABit | sbs.ChargingBatteryABit,
			bat(sbs.CmdBatteryStatus):      0,
			bat(sbs.CmdManufactureDate):    (26 << 9) | (3 << 5) | 14,
			bat(sbs.CmdSerialNumber):       4242,
			bat(sbs.CmdDesignCapacity):     5000,
			bat(sbs.CmdRemainingCapacity):  2500,
			bat(sbs.CmdFullChargeCapacity): 4800,
			bat(sbs.CmdAverageCurrent):     500,
			bat(sbs.CmdVoltage):            12300,
			bat(sbs.CmdMaxError):           2,
			bat(sbs.CmdCycleCount):         17,
			bat(sbs.CmdAverageTimeToEmpty): 65535,
			bat(sbs.CmdAverageTimeToFull):  90,
			bat(sbs.CmdTemperature):        2981,
			bat(sbs.CmdCellVoltage1):       4100,
			bat(sbs.CmdCellVoltage2):       4101,
			bat(sbs.CmdCellVoltage3):       4102,
			bat(sbs.CmdCellVoltage4):       4103,
			bat(sbs.CmdCurrent):            510,
		},
		blocks: map[regKey]string{
			bat(sbs.CmdManufacturerName): "ACME\x00\x00",
			bat(sbs.CmdDeviceName):       "PK-42",
		},
		seq:  map[regKey][]uint16{},
		fail: map[regKey][]smbus.Status{},
	}
}

func (d *device) answer(req smbus.Transaction) smbus.Transaction {
	k := regKey{req.Address, req.Command}
	d.reads = append(d.reads, req.Command)

	t := req
	if q := d.fail[k]; len(q) > 0 {
		t.Status = q[0]
		d.fail[k] = q[1:]
		return t
	}

	t.Status = smbus.StatusOK
	if t.Protocol == smbus.ProtocolReadBlock {
		t.Data = []byte(d.blocks[k])
		return t
	}
	w := d.words[k]
	if q := d.seq[k]; len(q) > 0 {
		w = q[0]
		d.seq[k] = q[1:]
	}
	t.Data = []byte{byte(w), byte(w >> 8)}
	return t
}

// ---- harness ----

type harness struct {
	t      *testing.T
	bus    *fakeBus
	clock  *manualClock
	sink   *recordingSink
	power  *recordingPower
	obs    *countingObserver
	logs   *bytes.Buffer
	sleeps []time.Duration
	s      *Scheduler
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		bus:   &fakeBus{},
		clock: &manualClock{},
		sink:  &recordingSink{},
		power: &recordingPower{},
		obs:   &countingObserver{cycles: map[CycleResult]int{}},
		logs:  &bytes.Buffer{},
	}
	cfg := Config{
		Bus:       h.bus,
		Clock:     h.clock,
		Sink:      h.sink,
		PowerRoot: h.power,
		Observer:  h.obs,
		Logger:    zerolog.New(h.logs).Level(zerolog.DebugLevel),
		Sleep:     func(d time.Duration) { h.sleeps = append(h.sleeps, d) },
	}
	for _, o := range opts {
		o(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	h.s = s
	return h
}

func (h *harness) pollTimer() *manualTimer { return h.clock.timers[0] }
func (h *harness) deadline() *manualTimer  { return h.clock.timers[1] }

// pending returns the outstanding request.
func (h *harness) pending() smbus.Transaction {
	h.t.Helper()
	p := h.s.m.drv.Pending()
	require.NotNil(h.t, p, "no pending request")
	return p.Request()
}

// step answers the outstanding request from d.
func (h *harness) step(d *device) {
	h.t.Helper()
	t := d.answer(h.pending())
	h.s.Complete(&t)
}

// steps answers n requests.
func (h *harness) steps(d *device, n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.step(d)
	}
}

// run answers requests until the cycle ends.
func (h *harness) run(d *device) {
	h.t.Helper()
	for i := 0; h.s.m.Active(); i++ {
		require.Less(h.t, i, 1000, "cycle did not terminate")
		h.step(d)
	}
}

func (h *harness) count(msg string) int {
	return strings.Count(h.logs.String(), `"message":"`+msg+`"`)
}

func fullReads() []uint8 {
	return []uint8{
		sbs.CmdSystemStateCont,
		sbs.CmdSystemState,
		sbs.CmdBatteryStatus,
		sbs.CmdManufacturerName,
		sbs.CmdManufactureDate,
		sbs.CmdDeviceName,
		sbs.CmdSerialNumber,
		sbs.CmdDesignCapacity,
		sbs.CmdRemainingCapacity,
		sbs.CmdFullChargeCapacity,
		sbs.CmdAverageCurrent,
		sbs.CmdVoltage,
		sbs.CmdMaxError,
		sbs.CmdCycleCount,
		sbs.CmdAverageTimeToEmpty,
		sbs.CmdAverageTimeToFull,
		sbs.CmdTemperature,
		sbs.CmdCellVoltage1,
		sbs.CmdCellVoltage2,
		sbs.CmdCellVoltage3,
		sbs.CmdCellVoltage4,
		sbs.CmdCurrent,
	}
}

func existingReads() []uint8 {
	full := fullReads()
	return append(append([]uint8{}, full[:3]...), full[8:]...)
}

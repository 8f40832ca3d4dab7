// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatcher

import (
	"testing"
	"time"

	"github.com/Thermoquad/tuyabridge/pkg/tuyaproto"
)

type fakeUI struct {
	values map[string]string
}

func newFakeUI() *fakeUI { return &fakeUI{values: make(map[string]string)} }

func (f *fakeUI) Publish(key, value string) { f.values[key] = value }

type fakeWriter struct {
	frames [][]byte
}

func (f *fakeWriter) WriteFrame(wire []byte) error {
	f.frames = append(f.frames, wire)
	return nil
}

type fakeClock struct {
	now  time.Time
	sync bool
	ms   int64
}

func (c *fakeClock) Now() time.Time      { return c.now }
func (c *fakeClock) Synchronized() bool  { return c.sync }
func (c *fakeClock) NowMs() int64        { return c.ms }

type fakeTempSink struct {
	reports []int32
}

func (f *fakeTempSink) OnTemperatureReport(raw int32) { f.reports = append(f.reports, raw) }

type fakeHeartbeat struct {
	count int
}

func (f *fakeHeartbeat) MarkHeartbeatReceived() { f.count++ }

type fakeSchedule struct {
	data []byte
}

func (f *fakeSchedule) ApplyScheduleFromMCU(data []byte) { f.data = append([]byte(nil), data...) }

func newTestDispatcher() (*Dispatcher, *fakeUI, *fakeWriter, *State) {
	state := NewState()
	ui := newFakeUI()
	writer := &fakeWriter{}
	clock := &fakeClock{now: time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC), sync: true}
	d := New(state, ui, writer, clock, nil, nil, nil, nil)
	return d, ui, writer, state
}

func TestDispatchTargetTemperature(t *testing.T) {
	d, ui, _, state := newTestDispatcher()
	f := tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, tuyaproto.DPTgtTemp, tuyaproto.TypeInt, []byte{0, 0, 0, 188})
	d.HandleFrame(f)

	if got := state.Snapshot().TargetTempDeciC; got != 188 {
		t.Errorf("target temp = %d, want 188", got)
	}
	if ui.values["tgtTemp"] != "18.8" {
		t.Errorf("tgtTemp published = %q, want 18.8", ui.values["tgtTemp"])
	}
}

func TestDispatchCurrentTemperatureMCUControlled(t *testing.T) {
	d, ui, _, state := newTestDispatcher()
	f := tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, tuyaproto.DPCurrTemp, tuyaproto.TypeInt, []byte{0, 0, 0, 205})
	d.HandleFrame(f)

	if got := state.Snapshot().CurrentTempRawDeciC; got != 205 {
		t.Errorf("raw temp = %d, want 205", got)
	}
	if got := state.Snapshot().CurrentTempSmoothed; got != 20.5 {
		t.Errorf("smoothed temp = %v, want 20.5", got)
	}
	if ui.values["currTemp"] != "20.5" {
		t.Errorf("currTemp published = %q", ui.values["currTemp"])
	}
}

func TestDispatchCurrentTemperatureESPControlled(t *testing.T) {
	state := NewState()
	state.SetESPControlsHeating(true)
	ui := newFakeUI()
	writer := &fakeWriter{}
	clock := &fakeClock{now: time.Now(), sync: true}
	sink := &fakeTempSink{}
	d := New(state, ui, writer, clock, sink, nil, nil, nil)

	f := tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, tuyaproto.DPCurrTemp, tuyaproto.TypeInt, []byte{0, 0, 0, 205})
	d.HandleFrame(f)

	if len(sink.reports) != 1 || sink.reports[0] != 205 {
		t.Fatalf("expected ESP controller to receive raw temp 205, got %v", sink.reports)
	}
}

func TestDispatchOutputOnTracksHeatingSession(t *testing.T) {
	state := NewState()
	ui := newFakeUI()
	writer := &fakeWriter{}
	clock := &fakeClock{sync: true, ms: 1000}
	d := New(state, ui, writer, clock, nil, nil, nil, nil)

	d.HandleFrame(tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, tuyaproto.DPOutputOn, tuyaproto.TypeBool, []byte{1}))
	if !state.HeatingOn() {
		t.Fatalf("expected heating on")
	}

	clock.ms = 6000
	d.HandleFrame(tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, tuyaproto.DPOutputOn, tuyaproto.TypeBool, []byte{0}))
	if state.HeatingOn() {
		t.Fatalf("expected heating off")
	}
	if got := state.Snapshot().HeatingElapsedMs; got != 5000 {
		t.Errorf("elapsed = %d, want 5000", got)
	}
}

func TestDispatchHeartbeatInitialization(t *testing.T) {
	d, _, writer, _ := newTestDispatcher()
	d.HandleFrame(tuyaproto.NewFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdHeartbeat, []byte{0}))

	if len(writer.frames) != 2 {
		t.Fatalf("expected 2 frames sent on first heartbeat, got %d", len(writer.frames))
	}
}

func TestDispatchHeartbeatNoInitializationOnSubsequentReplies(t *testing.T) {
	d, _, writer, _ := newTestDispatcher()
	d.HandleFrame(tuyaproto.NewFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdHeartbeat, []byte{1}))
	if len(writer.frames) != 0 {
		t.Fatalf("expected no frames sent on non-first heartbeat reply, got %d", len(writer.frames))
	}
}

func TestDispatchHeartbeatMarksObserver(t *testing.T) {
	state := NewState()
	ui := newFakeUI()
	writer := &fakeWriter{}
	clock := &fakeClock{sync: true}
	hb := &fakeHeartbeat{}
	d := New(state, ui, writer, clock, nil, hb, nil, nil)

	d.HandleFrame(tuyaproto.NewFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdHeartbeat, []byte{1}))
	if hb.count != 1 {
		t.Errorf("heartbeat observer count = %d, want 1", hb.count)
	}
}

func TestDispatchLocalTimeSynchronized(t *testing.T) {
	d, _, writer, _ := newTestDispatcher()
	d.HandleFrame(tuyaproto.NewFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdLocalTime, nil))

	if len(writer.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(writer.frames))
	}
	wire := writer.frames[0]
	// header(2) version(1) command(1) length(2) payload(8) checksum(1)
	if len(wire) != 15 {
		t.Fatalf("unexpected local time frame length %d", len(wire))
	}
	if wire[6] != 1 {
		t.Errorf("expected synced flag 1, got %d", wire[6])
	}
	if wire[7] != 26 { // 2026 - 2000
		t.Errorf("expected year byte 26, got %d", wire[7])
	}
}

func TestDispatchLocalTimeUnsynchronized(t *testing.T) {
	state := NewState()
	ui := newFakeUI()
	writer := &fakeWriter{}
	clock := &fakeClock{sync: false}
	d := New(state, ui, writer, clock, nil, nil, nil, nil)

	d.HandleFrame(tuyaproto.NewFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdLocalTime, nil))
	wire := writer.frames[0]
	if wire[6] != 0 {
		t.Errorf("expected synced flag 0 when clock unsynchronized")
	}
}

func TestDispatchScheduleHandsOffRawPayload(t *testing.T) {
	state := NewState()
	ui := newFakeUI()
	writer := &fakeWriter{}
	clock := &fakeClock{sync: true}
	sched := &fakeSchedule{}
	d := New(state, ui, writer, clock, nil, nil, sched, nil)

	payload := make([]byte, 32)
	payload[0] = 7
	d.HandleFrame(tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, tuyaproto.DPSchedule, tuyaproto.TypeRaw, payload))

	if len(sched.data) != 32 || sched.data[0] != 7 {
		t.Fatalf("schedule receiver did not get the raw payload: %v", sched.data)
	}
}

func TestDispatchTempCalSuppressedWhenESPControls(t *testing.T) {
	state := NewState()
	state.SetESPControlsHeating(true)
	ui := newFakeUI()
	writer := &fakeWriter{}
	clock := &fakeClock{sync: true}
	d := New(state, ui, writer, clock, nil, nil, nil, nil)

	d.HandleFrame(tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, tuyaproto.DPTempCal, tuyaproto.TypeInt, []byte{0, 0, 0, 15}))

	if state.BaseCalDeciC() != 0 {
		t.Errorf("base cal = %d, want 0 (inbound calibration ignored while ESP controls heating)", state.BaseCalDeciC())
	}
	if _, ok := ui.values["tempCal"]; ok {
		t.Errorf("tempCal should not be published while ESP controls heating")
	}
}

func TestDispatchDoResetRequestsDatapointQuery(t *testing.T) {
	d, _, writer, _ := newTestDispatcher()
	d.HandleFrame(tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, tuyaproto.DPDoReset, tuyaproto.TypeBool, []byte{1}))

	if len(writer.frames) != 1 {
		t.Fatalf("expected 1 frame sent on reset, got %d", len(writer.frames))
	}
	if writer.frames[0][3] != tuyaproto.CmdDatapointQuery {
		t.Errorf("expected datapoint query command, got %d", writer.frames[0][3])
	}
}

func TestDispatchUnknownDatapointLogsAndContinues(t *testing.T) {
	d, ui, _, _ := newTestDispatcher()
	f := tuyaproto.NewDatapointFrame(tuyaproto.PortMCU, tuyaproto.VersionMCU, tuyaproto.CmdDatapointReport, 200, tuyaproto.TypeBool, []byte{1})
	d.HandleFrame(f) // must not panic
	if len(ui.values) != 0 {
		t.Errorf("expected no publication for unknown datapoint")
	}
}

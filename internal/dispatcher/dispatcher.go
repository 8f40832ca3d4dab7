// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatcher

import (
	"fmt"
	"log"
	"time"

	"github.com/Thermoquad/tuyabridge/pkg/tuyaproto"
)

// UIPublisher is the narrow slice of the UI key/value bus (component D's
// counterpart) that the dispatcher needs: publishing (key, value) pairs
// read by the web surface. It is satisfied by *uibus.Bus.
type UIPublisher interface {
	Publish(key, value string)
}

// FrameWriter submits an already-encoded wire frame to the MCU-facing
// port. It is satisfied by the link bridge's MCU writer.
type FrameWriter interface {
	WriteFrame(wire []byte) error
}

// TemperatureConsumer receives every MCU-reported temperature sample when
// ESP-as-controller mode is active (component F). Satisfied by
// *espctrl.Controller.
type TemperatureConsumer interface {
	OnTemperatureReport(rawDeciC int32)
}

// Clock supplies wall-clock and monotonic time to the dispatcher — wall
// time for the local-time reply (command 28), monotonic milliseconds for
// the heating-session accumulator.
type Clock interface {
	Now() time.Time
	Synchronized() bool
	NowMs() int64
}

// HeartbeatObserver is notified whenever a heartbeat reply (command 0)
// arrives, satisfied by the schedule/heartbeat driver (component E).
type HeartbeatObserver interface {
	MarkHeartbeatReceived()
}

// ScheduleReceiver is handed the raw 32-byte schedule blob from datapoint
// 43 so component E can decode it into its slot table.
type ScheduleReceiver interface {
	ApplyScheduleFromMCU(data []byte)
}

// Housekeeper re-publishes local time and Wi-Fi status on demand, outside
// their normal heartbeat-driven cadence. The display datapoint triggers an
// immediate refresh of both whenever the thermostat's screen wakes up.
type Housekeeper interface {
	PublishLocalTimeNow()
	PublishWifiStatusNow()
}

// Dispatcher implements component C: it interprets parsed frames arriving
// from the MCU and updates State / the UI bus / cooperating components.
type Dispatcher struct {
	state     *State
	ui        UIPublisher
	mcu       FrameWriter
	clock     Clock
	tempSink  TemperatureConsumer
	heartbeat HeartbeatObserver
	schedule  ScheduleReceiver
	house     Housekeeper

	handlers map[uint8]func(*Dispatcher, tuyaproto.Frame)
}

// New constructs a Dispatcher. tempSink, heartbeat, schedule, and house may
// be nil if the corresponding component is not wired up (e.g. a pure
// sniffer build); the dispatcher degrades to state-tracking and UI
// publication only in that case.
func New(state *State, ui UIPublisher, mcu FrameWriter, clock Clock, tempSink TemperatureConsumer, heartbeat HeartbeatObserver, schedule ScheduleReceiver, house Housekeeper) *Dispatcher {
	d := &Dispatcher{
		state:     state,
		ui:        ui,
		mcu:       mcu,
		clock:     clock,
		tempSink:  tempSink,
		heartbeat: heartbeat,
		schedule:  schedule,
		house:     house,
	}
	d.handlers = map[uint8]func(*Dispatcher, tuyaproto.Frame){
		tuyaproto.DPSwitchDisp: (*Dispatcher).handleSwitchDisp,
		tuyaproto.DPTgtTemp:    (*Dispatcher).handleTgtTemp,
		tuyaproto.DPCurrTemp:   (*Dispatcher).handleCurrTemp,
		tuyaproto.DPProgMode:   (*Dispatcher).handleProgMode,
		tuyaproto.DPOutputOn:   (*Dispatcher).handleOutputOn,
		tuyaproto.DPChildLock:  d.handleBoolPublish("childLock"),
		tuyaproto.DPSoundOn:    d.handleBoolPublish("soundOn"),
		tuyaproto.DPFault:      (*Dispatcher).handleFault,
		tuyaproto.DPTempCal:    (*Dispatcher).handleTempCal,
		tuyaproto.DPRoomMax:    d.handleIntPublish("roomMax", false),
		tuyaproto.DPTempSensor: d.handleEnumPublish("tempSensor"),
		tuyaproto.DPFrost:      d.handleBoolPublish("frost"),
		tuyaproto.DPDoReset:    (*Dispatcher).handleDoReset,
		tuyaproto.DPBackLight:  d.handleEnumPublish("backLight"),
		tuyaproto.DPDaySetting: d.handleEnumPublish("daySetting"),
		tuyaproto.DPSchedule:   (*Dispatcher).handleSchedule,
		tuyaproto.DPOpReverse:  d.handleBoolPublish("opReverse"),
		tuyaproto.DPTempLash:   (*Dispatcher).handleTempLash,
		tuyaproto.DPFloorMax:   d.handleIntPublish("floorMax", false),
	}
	return d
}

// HandleFrame dispatches one MCU-originated frame by command code, per
// the table in spec.md §4.C.
func (d *Dispatcher) HandleFrame(f tuyaproto.Frame) {
	switch f.Command() {
	case tuyaproto.CmdHeartbeat:
		if d.heartbeat != nil {
			d.heartbeat.MarkHeartbeatReceived()
		}
		if f.Byte() == 0 {
			d.runInitialization()
		}
	case tuyaproto.CmdProductQuery, tuyaproto.CmdWorkingModeAck, tuyaproto.CmdWifiStatus, tuyaproto.CmdWifiReset:
		// Acks with no state change required.
	case tuyaproto.CmdDatapointReport:
		d.handleDatapoint(f)
	case tuyaproto.CmdLocalTime:
		d.sendLocalTime()
	default:
		log.Printf("dispatcher: unhandled command %d", f.Command())
	}
}

// runInitialization announces the current program mode and requests a
// full datapoint status refresh, mirroring the original firmware's
// doTuyaInit on the first heartbeat reply after connecting.
func (d *Dispatcher) runInitialization() {
	manual := d.state.ESPControlsHeating()
	mode := uint8(1)
	if manual {
		mode = 0
	}
	d.send(tuyaproto.EncodeDatapointBool(tuyaproto.VersionWifi, tuyaproto.DPProgMode, tuyaproto.TypeEnum, mode))
	d.send(tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdDatapointQuery, nil))
}

func (d *Dispatcher) handleDatapoint(f tuyaproto.Frame) {
	if !f.HasDatapoint() {
		return
	}
	h, ok := d.handlers[f.DatapointID()]
	if !ok {
		log.Printf("dispatcher: unknown datapoint id %d", f.DatapointID())
		return
	}
	h(d, f)
}

func (d *Dispatcher) sendLocalTime() {
	now := d.clock.Now()
	if !d.clock.Synchronized() {
		d.send(tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdLocalTime, []byte{0, 0, 0, 0, 0, 0, 0, 0}))
		return
	}
	weekday := uint8(now.Weekday())
	payload := []byte{
		1,
		uint8(now.Year() - 2000),
		uint8(now.Month()),
		uint8(now.Day()),
		uint8(now.Hour()),
		uint8(now.Minute()),
		uint8(now.Second()),
		weekday,
	}
	d.send(tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdLocalTime, payload))
}

func (d *Dispatcher) send(wire []byte) {
	if d.mcu == nil {
		return
	}
	if err := d.mcu.WriteFrame(wire); err != nil {
		log.Printf("dispatcher: write failed: %v", err)
	}
}

func (d *Dispatcher) publish(key string, value interface{}) {
	if d.ui == nil {
		return
	}
	d.ui.Publish(key, fmt.Sprintf("%v", value))
}

// --- per-datapoint handlers ---

func (d *Dispatcher) handleSwitchDisp(f tuyaproto.Frame) {
	on := f.Byte()
	d.publish("switchDisp", on)
	if on != 0 && d.house != nil {
		d.house.PublishLocalTimeNow()
		d.house.PublishWifiStatusNow()
	}
}

func (d *Dispatcher) handleTgtTemp(f tuyaproto.Frame) {
	v := f.Int32()
	d.state.SetTargetTempDeciC(v)
	d.publish("tgtTemp", deciToString(v))
}

func (d *Dispatcher) handleCurrTemp(f tuyaproto.Frame) {
	raw := f.Int32()
	d.state.SetCurrentTempRawDeciC(raw)
	d.publish("rawTemp", deciToString(raw))

	if d.state.ESPControlsHeating() && d.tempSink != nil {
		d.tempSink.OnTemperatureReport(raw)
	} else {
		d.state.SetCurrentTempSmoothed(float64(raw) / 10.0)
	}
	d.publish("currTemp", fmt.Sprintf("%.1f", d.state.Snapshot().CurrentTempSmoothed))
}

func (d *Dispatcher) handleProgMode(f tuyaproto.Frame) {
	d.publish("progMode", f.Byte())
}

func (d *Dispatcher) handleOutputOn(f tuyaproto.Frame) {
	on := f.Byte() != 0
	d.publish("outputOn", f.Byte())
	d.state.SetHeating(on, d.clock.NowMs())
}

func (d *Dispatcher) handleFault(f tuyaproto.Frame) {
	v := f.Byte()
	d.publish("fault", v)
	if v != 0 {
		log.Printf("dispatcher: external temperature sensor fault: %d", v)
	}
}

func (d *Dispatcher) handleTempCal(f tuyaproto.Frame) {
	// Ignored while ESP controls heating: the MCU then reports the
	// falsified calibration pushed by espctrl, not the base calibration,
	// so it is neither stored nor published.
	if d.state.ESPControlsHeating() {
		return
	}
	v := f.Int32()
	d.state.SetBaseCalDeciC(v)
	d.publish("tempCal", deciToString(v))
}

func (d *Dispatcher) handleDoReset(f tuyaproto.Frame) {
	if f.Byte() == 1 {
		d.send(tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdDatapointQuery, nil))
	}
}

func (d *Dispatcher) handleSchedule(f tuyaproto.Frame) {
	if d.schedule != nil {
		d.schedule.ApplyScheduleFromMCU(f.Payload())
	}
	data := f.Payload()
	for i := 0; i*4+3 < len(data) && i < 8; i++ {
		hour, minute := data[i*4], data[i*4+1]
		temp := int32(int16(uint16(data[i*4+2])<<8 | uint16(data[i*4+3])))
		d.publish(fmt.Sprintf("slotTime%d", i+1), fmt.Sprintf("%02d:%02d", hour, minute))
		d.publish(fmt.Sprintf("slotTemp%d", i+1), deciToString(temp))
	}
}

func (d *Dispatcher) handleTempLash(f tuyaproto.Frame) {
	v := f.Int32()
	d.state.SetBacklashDeciC(v)
	d.publish("tempLash", deciToString(v))
}

func (d *Dispatcher) handleBoolPublish(key string) func(*Dispatcher, tuyaproto.Frame) {
	return func(d *Dispatcher, f tuyaproto.Frame) {
		d.publish(key, f.Byte())
	}
}

func (d *Dispatcher) handleEnumPublish(key string) func(*Dispatcher, tuyaproto.Frame) {
	return func(d *Dispatcher, f tuyaproto.Frame) {
		d.publish(key, f.Byte())
	}
}

func (d *Dispatcher) handleIntPublish(key string, scaled bool) func(*Dispatcher, tuyaproto.Frame) {
	return func(d *Dispatcher, f tuyaproto.Frame) {
		if scaled {
			d.publish(key, deciToString(f.Int32()))
		} else {
			d.publish(key, f.Int32())
		}
	}
}

func deciToString(v int32) string {
	return fmt.Sprintf("%.1f", float64(v)/10.0)
}

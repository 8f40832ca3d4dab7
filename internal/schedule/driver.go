// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schedule

import (
	"context"
	"log"
	"sync"
	"time"
)

// fastInterval is how often heartbeats are sent while waiting for the MCU
// to acknowledge one; slowInterval takes over once acks are flowing.
const (
	fastInterval = 1 * time.Second
	slowInterval = 15 * time.Second
)

// FrameWriter submits a wire frame to the MCU-facing port.
type FrameWriter interface {
	WriteFrame(wire []byte) error
}

// UIPublisher publishes a key/value pair to the UI bus.
type UIPublisher interface {
	Publish(key, value string)
}

// Clock supplies wall and monotonic time.
type Clock interface {
	Now() time.Time
	Synchronized() bool
	NowMs() int64
}

// WifiMonitor reports Wi-Fi connectivity.
type WifiMonitor interface {
	Connected() bool
}

// TargetTempSink receives the schedule-selected target temperature so it
// can be pushed into the thermostat the same way a UI edit would be
// (component D's "tgtTemp" update path).
type TargetTempSink interface {
	ApplyTargetTemp(tempDeciC int32)
}

// Driver implements component E: it sends heartbeats every 1 s until a
// reply is seen and every 15 s while replies keep arriving (spec.md §4.E),
// and on every tick that follows an observed reply it publishes the
// cumulative heating statistics and advances the weekly schedule cursor.
type Driver struct {
	mcu    FrameWriter
	ui     UIPublisher
	clock  Clock
	wifi   WifiMonitor
	table  *Table
	cursor *Cursor
	target TargetTempSink

	startedAtMs int64

	mu                 sync.Mutex
	gotHeartbeat       bool
	heatingElapsedMsFn func() int64
	sentLocalTime      bool
	lastWifiConnected  int // -1 = never sent
}

// NewDriver wires up a heartbeat/schedule driver. heatingElapsedMsFn
// supplies the cumulative heating time tracked by the dispatcher's State,
// kept decoupled from this package to avoid an import cycle.
func NewDriver(mcu FrameWriter, ui UIPublisher, clock Clock, wifi WifiMonitor, table *Table, target TargetTempSink, heatingElapsedMsFn func() int64) *Driver {
	return &Driver{
		mcu:                mcu,
		ui:                 ui,
		clock:              clock,
		wifi:               wifi,
		table:              table,
		cursor:             NewCursor(),
		target:             target,
		startedAtMs:        clock.NowMs(),
		heatingElapsedMsFn: heatingElapsedMsFn,
		lastWifiConnected:  -1,
	}
}

// MarkHeartbeatReceived satisfies dispatcher.HeartbeatObserver.
func (d *Driver) MarkHeartbeatReceived() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gotHeartbeat = true
}

// PublishWifiStatusNow satisfies dispatcher.Housekeeper.
func (d *Driver) PublishWifiStatusNow() {
	d.sendWifiStatus(true)
}

// PublishLocalTimeNow satisfies dispatcher.Housekeeper.
func (d *Driver) PublishLocalTimeNow() {
	d.sendLocalTime(true)
}

// Run drives the heartbeat/schedule loop until ctx is canceled, the
// context-based shutdown replacing the original firmware's
// run-until-reset main loop.
func (d *Driver) Run(ctx context.Context) {
	interval := fastInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.tick()

			d.mu.Lock()
			got := d.gotHeartbeat
			d.gotHeartbeat = false
			d.mu.Unlock()

			if got {
				interval = slowInterval
			} else {
				interval = fastInterval
				log.Printf("schedule: missed heartbeat")
			}
			timer.Reset(interval)
		}
	}
}

func (d *Driver) tick() {
	d.sendHeartbeat()

	d.mu.Lock()
	got := d.gotHeartbeat
	d.mu.Unlock()
	if !got {
		return
	}

	d.sendWifiStatus(false)
	d.sendLocalTime(false)
	d.publishStatistics()
	d.checkSchedule()
}

func (d *Driver) sendHeartbeat() {
	d.write(encodeSimpleHeartbeat())
}

func (d *Driver) sendWifiStatus(demanded bool) {
	status := 0
	if d.wifi != nil && d.wifi.Connected() {
		status = 4 // matches the MCU's Wi-Fi icon state codes: 0 = no link, 4 = connected
	}
	if !demanded && status == d.lastWifiConnected {
		return
	}
	d.lastWifiConnected = status
	d.write(encodeWifiStatus(status))
}

func (d *Driver) sendLocalTime(demanded bool) {
	if !demanded {
		d.mu.Lock()
		already := d.sentLocalTime
		d.mu.Unlock()
		if already || !d.clock.Synchronized() {
			return
		}
	}
	if !d.clock.Synchronized() {
		d.write(encodeLocalTime(time.Time{}, false))
		return
	}
	d.write(encodeLocalTime(d.clock.Now(), true))
	d.mu.Lock()
	d.sentLocalTime = true
	d.mu.Unlock()
}

func (d *Driver) publishStatistics() {
	if d.ui == nil || d.heatingElapsedMsFn == nil {
		return
	}
	uptime := d.clock.NowMs() - d.startedAtMs
	report := ComputeReport(uptime, d.heatingElapsedMsFn())
	d.ui.Publish("upTime", FormatUptime(report.UptimeMs))
	d.ui.Publish("totalOn", FormatUptime(report.HeatingElapsedMs))
	d.ui.Publish("pcntOn", percentString(report.PercentOn))
	d.ui.Publish("kWh", kwhString(report.ProjectedDailyKWh))
}

func (d *Driver) checkSchedule() {
	if !d.clock.Synchronized() {
		return
	}
	now := d.clock.Now()
	secOfDay := int32(now.Hour()*3600 + now.Minute()*60 + now.Second())
	result := d.cursor.Advance(d.table.UsedSlice(), secOfDay, d.clock.NowMs())
	if result.Changed && d.target != nil {
		d.target.ApplyTargetTemp(result.TargetTempDeciC)
	}
}

func (d *Driver) write(wire []byte) {
	if d.mcu == nil {
		return
	}
	if err := d.mcu.WriteFrame(wire); err != nil {
		log.Printf("schedule: write failed: %v", err)
	}
}

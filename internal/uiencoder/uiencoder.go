// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package uiencoder implements component D: it turns a UI key/value edit
// into the right MCU datapoint frame (or, for a handful of internal-only
// keys, a local state change with no wire traffic at all), and batches
// the eight-slot weekly schedule into a single datapoint-43 frame once
// all of its pieces have arrived.
package uiencoder

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Thermoquad/tuyabridge/internal/dispatcher"
	"github.com/Thermoquad/tuyabridge/internal/schedule"
	"github.com/Thermoquad/tuyabridge/pkg/tuyaproto"
)

// FrameWriter submits a wire frame to the MCU-facing port.
type FrameWriter interface {
	WriteFrame(wire []byte) error
}

// AlphaDriftSetter adjusts the ESP controller's internal-only tuning
// parameters. Satisfied by *espctrl.Controller.
type AlphaDriftSetter interface {
	SetAlpha(alpha float64)
	SetDriftDeciC(driftDeciC int32)
}

// Encoder implements component D.
type Encoder struct {
	mcu   FrameWriter
	state *dispatcher.State
	table *schedule.Table
	ctrl  AlphaDriftSetter

	mu        sync.Mutex
	slotEdits int
}

// New constructs an Encoder. ctrl may be nil when ESP control is not
// compiled in, in which case "alpha" and "drift" UI edits are ignored.
func New(mcu FrameWriter, state *dispatcher.State, table *schedule.Table, ctrl AlphaDriftSetter) *Encoder {
	return &Encoder{mcu: mcu, state: state, table: table, ctrl: ctrl}
}

// SetController wires the ESP controller after construction, for callers
// that must build the Encoder (as the controller's CalibrationWriter)
// before the controller itself exists.
func (e *Encoder) SetController(ctrl AlphaDriftSetter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctrl = ctrl
}

// ApplyUpdate translates one UI key/value edit, mirroring the original
// firmware's updateAppStatus if/else chain — now a dispatch table plus a
// couple of prefix-matched cases for the schedule slots.
func (e *Encoder) ApplyUpdate(key, value string) error {
	if strings.HasPrefix(key, "slotTime") {
		return e.applySlotTime(key, value)
	}
	if strings.HasPrefix(key, "slotTemp") {
		return e.applySlotTemp(key, value)
	}

	switch key {
	case "tgtTemp":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("uiencoder: tgtTemp: %w", err)
		}
		e.ApplyTargetTemp(int32(v * 10))
	case "floorMax":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("uiencoder: floorMax: %w", err)
		}
		e.send(tuyaproto.EncodeDatapointInt(tuyaproto.VersionWifi, tuyaproto.DPFloorMax, int32(v)))
	case "roomMax":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("uiencoder: roomMax: %w", err)
		}
		e.send(tuyaproto.EncodeDatapointInt(tuyaproto.VersionWifi, tuyaproto.DPRoomMax, int32(v)))
	case "tempSensor":
		return e.sendEnum(value, tuyaproto.DPTempSensor)
	case "progMode":
		return e.sendEnum(value, tuyaproto.DPProgMode)
	case "daySetting":
		return e.sendEnum(value, tuyaproto.DPDaySetting)
	case "backLight":
		return e.sendEnum(value, tuyaproto.DPBackLight)
	case "frost":
		return e.sendBool(value, tuyaproto.DPFrost)
	case "switchDisp":
		return e.sendBool(value, tuyaproto.DPSwitchDisp)
	case "childLock":
		return e.sendBool(value, tuyaproto.DPChildLock)
	case "doReset":
		return e.sendBool(value, tuyaproto.DPDoReset)
	case "opReverse":
		return e.sendBool(value, tuyaproto.DPOpReverse)
	case "tempCal":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("uiencoder: tempCal: %w", err)
		}
		deci := int32(v * 10)
		e.state.SetBaseCalDeciC(deci)
		// While ESP controls heating, it owns this datapoint's wire value
		// via ApplyCalibration; a direct UI edit here would fight it.
		if !e.state.ESPControlsHeating() {
			e.send(tuyaproto.EncodeDatapointInt(tuyaproto.VersionWifi, tuyaproto.DPTempCal, deci))
		}
	case "espCal":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("uiencoder: espCal: %w", err)
		}
		e.ApplyCalibration(int32(v))
	case "tempLash":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("uiencoder: tempLash: %w", err)
		}
		deci := int32(v * 10)
		e.state.SetBacklashDeciC(deci)
		e.send(tuyaproto.EncodeDatapointInt(tuyaproto.VersionWifi, tuyaproto.DPTempLash, deci))
	case "alpha":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("uiencoder: alpha: %w", err)
		}
		if e.ctrl != nil {
			e.ctrl.SetAlpha(v)
		}
	case "drift":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("uiencoder: drift: %w", err)
		}
		if e.ctrl != nil {
			e.ctrl.SetDriftDeciC(int32(v * 10))
		}
	case "setCtrl":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("uiencoder: setCtrl: %w", err)
		}
		e.state.SetESPControlsHeating(v)
		mode := uint8(1)
		if v {
			mode = 0
		}
		e.send(tuyaproto.EncodeDatapointBool(tuyaproto.VersionWifi, tuyaproto.DPProgMode, tuyaproto.TypeEnum, mode))
	default:
		// Unmatched key: the original firmware silently ignores it too.
	}
	return nil
}

// ApplyTargetTemp satisfies schedule.TargetTempSink: it pushes a
// schedule-selected target temperature to the MCU exactly like a UI edit
// would.
func (e *Encoder) ApplyTargetTemp(tempDeciC int32) {
	e.state.SetTargetTempDeciC(tempDeciC)
	e.send(tuyaproto.EncodeDatapointInt(tuyaproto.VersionWifi, tuyaproto.DPTgtTemp, tempDeciC))
}

// ApplyCalibration satisfies espctrl.CalibrationWriter: it pushes a
// falsified calibration offset to the MCU without touching the mirrored
// base-calibration value (only a real "tempCal" edit does that).
func (e *Encoder) ApplyCalibration(calDeciC int32) {
	e.send(tuyaproto.EncodeDatapointInt(tuyaproto.VersionWifi, tuyaproto.DPTempCal, calDeciC))
}

func (e *Encoder) applySlotTime(key, value string) error {
	idx, err := slotIndex(key, "slotTime")
	if err != nil {
		return err
	}
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("uiencoder: %s: malformed time %q", key, value)
	}
	if err := e.table.SetSlotTime(idx, hour, minute); err != nil {
		return err
	}
	e.noteSlotEdit()
	return nil
}

func (e *Encoder) applySlotTemp(key, value string) error {
	idx, err := slotIndex(key, "slotTemp")
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("uiencoder: %s: %w", key, err)
	}
	if err := e.table.SetSlotTemp(idx, int32(v*10)); err != nil {
		return err
	}
	e.noteSlotEdit()
	return nil
}

// noteSlotEdit counts individual slot field edits and, once a full
// round-trip of all TimeSlots*2 fields (time + temp for every slot) has
// arrived, flushes the whole table to the MCU as one datapoint-43 frame —
// the same batching the original firmware's slotCnt counter performs.
func (e *Encoder) noteSlotEdit() {
	e.mu.Lock()
	e.slotEdits++
	flush := e.slotEdits >= schedule.TimeSlots*2
	if flush {
		e.slotEdits = 0
	}
	e.mu.Unlock()

	if flush {
		e.send(tuyaproto.EncodeDatapointRaw(tuyaproto.VersionWifi, tuyaproto.DPSchedule, tuyaproto.TypeRaw, e.table.EncodeForMCU()))
	}
}

func slotIndex(key, prefix string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
	if err != nil {
		return 0, fmt.Errorf("uiencoder: %s: invalid slot suffix", key)
	}
	idx := n - 1
	if idx < 0 || idx >= schedule.TimeSlots {
		return 0, fmt.Errorf("uiencoder: %s: slot %d out of range", key, n)
	}
	return idx, nil
}

func (e *Encoder) sendBool(value string, dpID uint8) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		// The UI may also send "0"/"1" rather than "true"/"false".
		n, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("uiencoder: dp%d: %w", dpID, err)
		}
		v = n != 0
	}
	val := uint8(0)
	if v {
		val = 1
	}
	e.send(tuyaproto.EncodeDatapointBool(tuyaproto.VersionWifi, dpID, tuyaproto.TypeBool, val))
	return nil
}

func (e *Encoder) sendEnum(value string, dpID uint8) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("uiencoder: dp%d: %w", dpID, err)
	}
	e.send(tuyaproto.EncodeDatapointBool(tuyaproto.VersionWifi, dpID, tuyaproto.TypeEnum, uint8(v)))
	return nil
}

func (e *Encoder) send(wire []byte) {
	if e.mcu == nil {
		return
	}
	_ = e.mcu.WriteFrame(wire)
}

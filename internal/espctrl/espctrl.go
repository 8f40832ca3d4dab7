// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package espctrl implements component F: a hysteresis-based heating
// controller that takes over from the thermostat's own MCU firmware by
// reporting a falsified calibration offset, nudging the MCU's own
// on-board control loop to switch the relay the way the bridge wants.
package espctrl

import (
	"sync"

	"github.com/Thermoquad/tuyabridge/internal/dispatcher"
)

// CalibrationWriter pushes a falsified temperature-calibration datapoint
// value to the MCU, the same wire path a UI "tempCal" edit would use.
// Satisfied by the UI encoder's internal update path.
type CalibrationWriter interface {
	ApplyCalibration(calDeciC int32)
}

const (
	defaultAlpha     = 1.0
	defaultDriftDeci = 30 // 3.0C, comfortably above floor-sensor noise
)

// Controller reads every MCU temperature report handed to it by the
// dispatcher (when ESP-as-controller mode is active) and decides whether
// to force the relay on or off by overstating or understating the
// calibration offset reported back to the MCU.
type Controller struct {
	mu    sync.Mutex
	alpha float64
	drift int32 // deci-degrees

	state *dispatcher.State
	cal   CalibrationWriter
}

// New constructs a Controller bound to the shared mirrored state and a
// sink for the falsified calibration updates it issues.
func New(state *dispatcher.State, cal CalibrationWriter) *Controller {
	return &Controller{
		alpha: defaultAlpha,
		drift: defaultDriftDeci,
		state: state,
		cal:   cal,
	}
}

// SetAlpha adjusts the EMA smoothing factor (1.0 disables smoothing
// entirely, favoring the latest sample). An internal UI-only setting —
// it has no corresponding MCU datapoint.
func (c *Controller) SetAlpha(alpha float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alpha = alpha
}

// SetDriftDeciC adjusts how far the falsified calibration overstates or
// understates the floor sensor reading, in deci-degrees. Another
// internal-only UI setting.
func (c *Controller) SetDriftDeciC(drift int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drift = drift
}

// OnTemperatureReport runs one hysteresis control cycle from a raw
// MCU-reported floor temperature (datapoint 3), mirroring the original
// firmware's controlHeating: derive an expected floor temperature from
// the calibration offset, smooth it against the last estimate, then
// switch the relay by lying to the MCU about its calibration only when
// the smoothed estimate crosses the target (plus backlash on the way
// back on).
func (c *Controller) OnTemperatureReport(rawDeciC int32) {
	c.mu.Lock()
	alpha := c.alpha
	driftDeci := c.drift
	c.mu.Unlock()

	snap := c.state.Snapshot()
	mcuTemp := float64(rawDeciC) / 10.0
	baseCal := float64(snap.BaseCalDeciC) / 10.0
	drift := float64(driftDeci) / 10.0

	var floorTemp float64
	if snap.HeatingOn {
		floorTemp = baseCal + drift
	} else {
		floorTemp = baseCal - drift
	}
	floorTemp += mcuTemp

	smoothed := ema(floorTemp, snap.CurrentTempSmoothed, alpha)
	c.state.SetCurrentTempSmoothed(smoothed)

	tgtTemp := float64(snap.TargetTempDeciC) / 10.0
	backlash := float64(snap.BacklashDeciC) / 10.0

	if snap.HeatingOn {
		if smoothed > tgtTemp {
			c.forceCalibration(baseCal + drift)
		}
		return
	}
	if smoothed+backlash < tgtTemp {
		c.forceCalibration(baseCal - drift)
	}
}

func (c *Controller) forceCalibration(calDegrees float64) {
	if c.cal == nil {
		return
	}
	c.cal.ApplyCalibration(int32(calDegrees * 10))
}

// ema computes one exponential-moving-average step: alpha weights the new
// sample, (1-alpha) carries forward the previous estimate. alpha == 1.0
// degenerates to no smoothing at all.
func ema(sample, previous, alpha float64) float64 {
	return alpha*sample + (1-alpha)*previous
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schedule

import "fmt"

// RatedKW is the heating mat's rated power draw, used to project daily
// energy use from the observed duty cycle.
const RatedKW = 1.8

const msPerHour = 3600 * 1000

// Report is a point-in-time snapshot of the bridge's uptime and heating
// duty cycle, published to the UI once per slow heartbeat tick.
type Report struct {
	UptimeMs          int64
	HeatingElapsedMs  int64
	PercentOn         float64
	ProjectedDailyKWh float64
}

// ComputeReport derives the duty-cycle statistics from raw millisecond
// counters, the same formulas as the original firmware's updateStats:
// percentage of elapsed time spent heating, and a rated-power projection
// of what that duty cycle would cost over a full day.
func ComputeReport(uptimeMs, heatingElapsedMs int64) Report {
	if uptimeMs <= 0 {
		return Report{}
	}
	percentOn := float64(heatingElapsedMs) * 100.0 / float64(uptimeMs)
	avgOnMsPerDay := percentOn * 864.0 * 1000.0
	kWh := (avgOnMsPerDay / msPerHour) * RatedKW
	return Report{
		UptimeMs:          uptimeMs,
		HeatingElapsedMs:  heatingElapsedMs,
		PercentOn:         percentOn,
		ProjectedDailyKWh: kWh,
	}
}

func percentString(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

func kwhString(kwh float64) string {
	return fmt.Sprintf("%.1fkWh", kwh)
}

// FormatUptime renders a millisecond duration as e.g. "2d03h04m05s",
// omitting leading units that are zero ("4m05s", "5s").
func FormatUptime(ms int64) string {
	totalSecs := ms / 1000
	days := totalSecs / 86400
	hours := (totalSecs % 86400) / 3600
	mins := (totalSecs % 3600) / 60
	secs := totalSecs % 60
	if days > 0 {
		return fmt.Sprintf("%dd%02dh%02dm%02ds", days, hours, mins, secs)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

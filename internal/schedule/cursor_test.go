// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schedule

import "testing"

func weekdaySlots() [UsedSlots]Slot {
	return [UsedSlots]Slot{
		{Hour: 6, Minute: 0, TempDeciC: 200},  // 06:00 -> 20.0
		{Hour: 8, Minute: 30, TempDeciC: 180}, // 08:30 -> 18.0
		{Hour: 12, Minute: 0, TempDeciC: 190},
		{Hour: 17, Minute: 0, TempDeciC: 210},
		{Hour: 21, Minute: 0, TempDeciC: 170},
		{Hour: 23, Minute: 0, TempDeciC: 150},
	}
}

func TestCursorSeedMidSlot(t *testing.T) {
	c := NewCursor()
	slots := weekdaySlots()
	// 09:00:00 falls between slot 1 (08:30) and slot 2 (12:00).
	secOfDay := int32(9 * 3600)
	result := c.Advance(slots, secOfDay, 0)
	if !result.Changed || result.Slot != 1 {
		t.Fatalf("expected seed to select slot 1, got %+v", result)
	}
	if result.TargetTempDeciC != 180 {
		t.Errorf("target = %d, want 180", result.TargetTempDeciC)
	}
}

func TestCursorSeedBeforeFirstSlot(t *testing.T) {
	c := NewCursor()
	slots := weekdaySlots()
	// 02:00:00 is before the first slot (06:00) -- must wrap to the last
	// slot of the previous day, per spec.md's day-wrap invariant.
	secOfDay := int32(2 * 3600)
	result := c.Advance(slots, secOfDay, 0)
	if !result.Changed || result.Slot != UsedSlots-1 {
		t.Fatalf("expected wrap to last slot, got %+v", result)
	}
	if result.TargetTempDeciC != 150 {
		t.Errorf("target = %d, want 150", result.TargetTempDeciC)
	}
}

func TestCursorAdvancesToNextSlotAfterDuration(t *testing.T) {
	c := NewCursor()
	slots := weekdaySlots()
	first := c.Advance(slots, int32(6*3600), 0) // exactly at slot 0 start
	if first.Slot != 0 {
		t.Fatalf("expected slot 0, got %d", first.Slot)
	}

	// Slot 0 runs from 06:00 to 08:30, i.e. 9000 seconds = 9_000_000 ms.
	stillSame := c.Advance(slots, 0, 8_999_999)
	if stillSame.Changed || stillSame.Slot != 0 {
		t.Fatalf("expected no change before slot duration elapses, got %+v", stillSame)
	}

	rolled := c.Advance(slots, 0, 9_000_001)
	if !rolled.Changed || rolled.Slot != 1 {
		t.Fatalf("expected roll to slot 1, got %+v", rolled)
	}
}

func TestCursorWrapsFromLastSlotToFirst(t *testing.T) {
	c := NewCursor()
	slots := weekdaySlots()
	c.Advance(slots, int32(23*3600), 0) // seed directly onto the last slot

	// Last slot (23:00) runs until slot 0 (06:00) the next day: 7 hours =
	// 25200 seconds = 25_200_000 ms.
	rolled := c.Advance(slots, 0, 25_200_001)
	if !rolled.Changed || rolled.Slot != 0 {
		t.Fatalf("expected wrap to slot 0, got %+v", rolled)
	}
	if rolled.TargetTempDeciC != 200 {
		t.Errorf("target = %d, want 200", rolled.TargetTempDeciC)
	}
}

func TestComputeReportZeroUptime(t *testing.T) {
	r := ComputeReport(0, 0)
	if r.PercentOn != 0 || r.ProjectedDailyKWh != 0 {
		t.Errorf("expected zero report for zero uptime, got %+v", r)
	}
}

func TestComputeReportHalfDutyCycle(t *testing.T) {
	r := ComputeReport(1000, 500)
	if r.PercentOn != 50 {
		t.Errorf("percent on = %v, want 50", r.PercentOn)
	}
	wantKWh := 50.0 * 864.0 * 1000.0 / msPerHour * RatedKW
	if r.ProjectedDailyKWh != wantKWh {
		t.Errorf("projected kWh = %v, want %v", r.ProjectedDailyKWh, wantKWh)
	}
}

func TestApplyAndEncodeScheduleRoundTrip(t *testing.T) {
	table := NewTable()
	data := make([]byte, TimeSlots*4)
	for i := 0; i < TimeSlots; i++ {
		data[i*4] = byte(i)
		data[i*4+1] = 30
		data[i*4+2] = 0
		data[i*4+3] = byte(180 + i)
	}
	table.ApplyScheduleFromMCU(data)

	got := table.Slot(3)
	if got.Hour != 3 || got.Minute != 30 || got.TempDeciC != 183 {
		t.Fatalf("unexpected decoded slot: %+v", got)
	}

	encoded := table.EncodeForMCU()
	if len(encoded) != TimeSlots*4 {
		t.Fatalf("encoded length = %d, want %d", len(encoded), TimeSlots*4)
	}
	if encoded[3*4] != 3 || encoded[3*4+1] != 30 {
		t.Errorf("encoded slot 3 time mismatch: %v", encoded[12:16])
	}
}

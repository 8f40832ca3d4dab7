// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schedule

// Cursor tracks which weekday slot is currently active and when the next
// one takes over. It is a pure state machine — Advance takes the current
// second-of-day and a monotonic millisecond clock as arguments so it can
// be driven by tests without a real clock or goroutine.
type Cursor struct {
	currentSlot    int // -1 until the first Advance call
	slotDurationMs int64
	startedAtMs    int64
}

// NewCursor returns a Cursor with no slot selected yet.
func NewCursor() *Cursor {
	return &Cursor{currentSlot: -1}
}

// CurrentSlot returns the index of the active slot, or -1 if Advance has
// never been called.
func (c *Cursor) CurrentSlot() int { return c.currentSlot }

// Result describes the outcome of one Advance call.
type Result struct {
	Slot            int
	TargetTempDeciC int32
	Changed         bool
}

// Advance selects the active weekday slot given the current second-of-day
// and a monotonic millisecond timestamp, mirroring checkSchedule's
// slot-selection and day-wrap logic: on the very first call it searches
// backwards from the last slot for the one whose start time has already
// passed; on later calls it simply waits out the previously computed slot
// duration and rolls over to the next slot (wrapping to slot 0 past the
// last one).
func (c *Cursor) Advance(slots [UsedSlots]Slot, secOfDay int32, nowMs int64) Result {
	if c.currentSlot < 0 {
		return c.seed(slots, secOfDay, nowMs)
	}
	if nowMs-c.startedAtMs <= c.slotDurationMs {
		return Result{Slot: c.currentSlot, TargetTempDeciC: slots[c.currentSlot].TempDeciC}
	}

	next := c.currentSlot + 1
	if next >= UsedSlots {
		next = 0
	}
	var duration int32
	if next < UsedSlots-1 {
		duration = slots[next+1].SecondsOfDay() - slots[next].SecondsOfDay()
	} else {
		duration = SecsInDay + slots[0].SecondsOfDay() - slots[next].SecondsOfDay()
	}
	c.currentSlot = next
	c.slotDurationMs = int64(duration) * 1000
	c.startedAtMs = nowMs
	return Result{Slot: next, TargetTempDeciC: slots[next].TempDeciC, Changed: true}
}

func (c *Cursor) seed(slots [UsedSlots]Slot, secOfDay int32, nowMs int64) Result {
	slot := UsedSlots - 1
	for slots[slot].SecondsOfDay() > secOfDay {
		slot--
		if slot < 0 {
			break
		}
	}

	var duration int32
	if slot < 0 || slot == UsedSlots-1 {
		// Either every slot is still ahead today, or we landed on the
		// last slot — either way the remaining time wraps through
		// midnight to slot 0.
		slot = UsedSlots - 1
		duration = slots[0].SecondsOfDay() - secOfDay
		if duration < 0 {
			duration += SecsInDay
		}
	} else {
		duration = slots[slot+1].SecondsOfDay() - secOfDay
	}

	c.currentSlot = slot
	c.slotDurationMs = int64(duration) * 1000
	c.startedAtMs = nowMs
	return Result{Slot: slot, TargetTempDeciC: slots[slot].TempDeciC, Changed: true}
}

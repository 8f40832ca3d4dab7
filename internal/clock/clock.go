// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package clock supplies the wall-clock, monotonic, and Wi-Fi status
// collaborators that the bridge's components read time and network state
// through, so tests can inject fakes instead of touching the real clock
// or network stack.
package clock

import (
	"sync"
	"time"
)

// System is the production Clock: wall time from time.Now, monotonic
// milliseconds from an internal start epoch, and NTP sync state set
// externally once the host clock has been disciplined.
type System struct {
	mu        sync.RWMutex
	start     time.Time
	synced    bool
}

// NewSystem creates a Clock whose monotonic epoch is the moment of
// construction — call this once at process startup.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (c *System) Now() time.Time { return time.Now() }

// NowMs returns elapsed milliseconds since the Clock was constructed, a
// monotonic counter immune to wall-clock adjustments.
func (c *System) NowMs() int64 {
	return time.Since(c.start).Milliseconds()
}

// Synchronized reports whether the host clock has been set from NTP yet.
// The heartbeat driver only trusts Now() for the local-time reply and the
// schedule cursor's seed once this is true.
func (c *System) Synchronized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// MarkSynchronized records that Now() can be trusted. The bridge command
// calls it at startup, trusting the host clock.
func (c *System) MarkSynchronized() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synced = true
}

// WifiMonitor reports the current Wi-Fi connection state.
type WifiMonitor interface {
	Connected() bool
}

// StaticWifi is a WifiMonitor that never changes state. The bridge
// command uses StaticWifi(true), always reporting a connected link.
type StaticWifi bool

func (s StaticWifi) Connected() bool { return bool(s) }

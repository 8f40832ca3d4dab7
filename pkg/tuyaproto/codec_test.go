// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuyaproto

import (
	"bytes"
	"testing"
)

func decodeAll(t *testing.T, d *Decoder, data []byte) []*Frame {
	t.Helper()
	var frames []*Frame
	for _, b := range data {
		f, err := d.DecodeByte(b)
		if err != nil {
			t.Logf("decode error (tolerated): %v", err)
			continue
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
	return frames
}

// S1: DP 2, int, value 0x000000BC = 188 decidegrees.
func TestDecodeScenarioS1(t *testing.T) {
	stream := []byte{0x55, 0xaa, 0x03, 0x07, 0x00, 0x08, 0x02, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0xbc, 0xd5}
	d := NewDecoder(PortMCU)
	frames := decodeAll(t, d, stream)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Command() != CmdDatapointReport {
		t.Errorf("command = %d, want %d", f.Command(), CmdDatapointReport)
	}
	if !f.HasDatapoint() || f.DatapointID() != DPTgtTemp {
		t.Fatalf("expected datapoint 2, got hasDP=%v id=%d", f.HasDatapoint(), f.DatapointID())
	}
	if f.DatapointType() != TypeInt {
		t.Errorf("type = %v, want int", f.DatapointType())
	}
	if got := f.Int32(); got != 188 {
		t.Errorf("value = %d, want 188", got)
	}
}

// S2: UI update (tgtTemp, "19") -> 55 aa 00 06 00 08 02 02 00 04 00 00 00 be CK
func TestEncodeScenarioS2(t *testing.T) {
	got := EncodeDatapointInt(VersionWifi, DPTgtTemp, 190)
	want := []byte{0x55, 0xaa, 0x00, 0x06, 0x00, 0x08, 0x02, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0xbe}
	want = append(want, Checksum(want))
	if !bytes.Equal(got, want) {
		t.Errorf("encode mismatch:\n got  %X\n want %X", got, want)
	}
}

func TestChecksumLaw(t *testing.T) {
	frame := EncodeDatapointInt(VersionWifi, DPTgtTemp, 190)
	n := len(frame) - 1
	if Checksum(frame[:n]) != frame[n] {
		t.Errorf("checksum law violated")
	}
}

// Invariant: decode(encode(F)) == F, modulo checksum recomputation.
func TestRoundTrip(t *testing.T) {
	cases := []Frame{
		NewFrame(PortWifi, VersionWifi, CmdHeartbeat, nil),
		NewDatapointFrame(PortMCU, VersionMCU, CmdDatapointReport, DPOutputOn, TypeBool, []byte{1}),
		NewDatapointFrame(PortWifi, VersionWifi, CmdDatapointSet, DPSchedule, TypeRaw, make([]byte, 32)),
	}
	for i, f := range cases {
		wire, err := EncodeFrame(f)
		if err != nil {
			t.Fatalf("case %d: encode error: %v", i, err)
		}
		d := NewDecoder(f.Origin())
		var got *Frame
		for _, b := range wire {
			fr, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("case %d: decode error: %v", i, err)
			}
			if fr != nil {
				got = fr
			}
		}
		if got == nil {
			t.Fatalf("case %d: frame never completed", i)
		}
		if got.Command() != f.Command() || got.HasDatapoint() != f.HasDatapoint() {
			t.Errorf("case %d: command/hasDP mismatch", i)
		}
		if f.HasDatapoint() {
			if got.DatapointID() != f.DatapointID() || got.DatapointType() != f.DatapointType() {
				t.Errorf("case %d: datapoint id/type mismatch", i)
			}
			if !bytes.Equal(got.Payload(), f.Payload()) {
				t.Errorf("case %d: payload mismatch: got %X want %X", i, got.Payload(), f.Payload())
			}
		}
	}
}

// Invariant 3: header re-sync.
func TestHeaderResync(t *testing.T) {
	valid := EncodeSimple(VersionMCU, CmdHeartbeat, nil)

	// Garbage before a valid frame must not change the decoded result.
	withGarbage := append([]byte{0x01, 0x02, 0x03, 0x55, 0x99}, valid...)
	d1 := NewDecoder(PortMCU)
	frames1 := decodeAll(t, d1, withGarbage)

	d2 := NewDecoder(PortMCU)
	frames2 := decodeAll(t, d2, valid)

	if len(frames1) != 1 || len(frames2) != 1 {
		t.Fatalf("expected exactly one frame from each stream, got %d and %d", len(frames1), len(frames2))
	}
	if frames1[0].Command() != frames2[0].Command() {
		t.Errorf("resynced decode diverged from clean decode")
	}

	// A header appearing mid-frame truncates the in-flight frame and
	// restarts decoding from that point.
	truncated := append(EncodeSimple(VersionMCU, CmdDatapointReport, []byte{1, 2, 3})[:4], valid...)
	d3 := NewDecoder(PortMCU)
	frames3 := decodeAll(t, d3, truncated)
	if len(frames3) != 1 {
		t.Fatalf("expected 1 frame after mid-frame resync, got %d", len(frames3))
	}
	if frames3[0].Command() != CmdHeartbeat {
		t.Errorf("expected the resynced frame, got command %d", frames3[0].Command())
	}
}

func TestChecksumMismatchDropped(t *testing.T) {
	frame := EncodeSimple(VersionMCU, CmdHeartbeat, nil)
	frame[len(frame)-1] ^= 0xFF // corrupt checksum

	d := NewDecoder(PortMCU)
	var gotErr bool
	for _, b := range frame {
		_, err := d.DecodeByte(b)
		if err != nil {
			gotErr = true
		}
	}
	if !gotErr {
		t.Errorf("expected a checksum mismatch error")
	}
}

func FuzzDecodeByte(f *testing.F) {
	f.Add(EncodeSimple(VersionMCU, CmdHeartbeat, nil))
	f.Add(EncodeDatapointInt(VersionWifi, DPTgtTemp, 42))
	f.Add([]byte{0x55, 0xaa, 0x00})
	f.Fuzz(func(t *testing.T, data []byte) {
		d := NewDecoder(PortMCU)
		for _, b := range data {
			// Must never panic regardless of input.
			_, _ = d.DecodeByte(b)
		}
	})
}

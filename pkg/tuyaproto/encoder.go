// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuyaproto

import "fmt"

// EncodeSimple builds a wire frame for a command with a raw (already
// formatted) payload — used for heartbeats (no payload), acks, and the
// local-time response.
func EncodeSimple(version, command uint8, payload []byte) []byte {
	frame := make([]byte, 0, 7+len(payload))
	frame = append(frame, HeaderByte1, HeaderByte2, version, command)
	frame = append(frame, byte(len(payload)>>8), byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(frame))
	return frame
}

// EncodeDatapointBool builds a datapoint-set frame (command 6) carrying a
// single boolean/enum byte.
func EncodeDatapointBool(version uint8, dpID uint8, dpType DatapointType, value uint8) []byte {
	return encodeDatapoint(version, dpID, dpType, []byte{value})
}

// EncodeDatapointInt builds a datapoint-set frame carrying a 32-bit signed
// big-endian integer (the "int" wire type).
func EncodeDatapointInt(version uint8, dpID uint8, value int32) []byte {
	data := []byte{
		byte(uint32(value) >> 24),
		byte(uint32(value) >> 16),
		byte(uint32(value) >> 8),
		byte(uint32(value)),
	}
	return encodeDatapoint(version, dpID, TypeInt, data)
}

// EncodeDatapointRaw builds a datapoint-set frame carrying an arbitrary
// byte sequence (the "raw"/"bitmap"/"str" wire types) — used for the
// 32-byte schedule blob (datapoint 43).
func EncodeDatapointRaw(version uint8, dpID uint8, dpType DatapointType, data []byte) []byte {
	return encodeDatapoint(version, dpID, dpType, data)
}

func encodeDatapoint(version, dpID uint8, dpType DatapointType, data []byte) []byte {
	payload := make([]byte, 0, 4+len(data))
	payload = append(payload, dpID, byte(dpType))
	payload = append(payload, byte(len(data)>>8), byte(len(data)))
	payload = append(payload, data...)
	return EncodeSimple(version, CmdDatapointSet, payload)
}

// EncodeFrame re-encodes an already-decoded Frame back to wire bytes,
// recomputing length and checksum and keeping the frame's own command
// code. Used by round-trip tests (spec.md §8 invariant 1) and by the sniff
// command's console command parser.
func EncodeFrame(f Frame) ([]byte, error) {
	if !f.HasDatapoint() {
		return EncodeSimple(f.Version(), f.Command(), f.Payload()), nil
	}
	data := f.Payload()
	if len(data) > MaxPayloadSize {
		return nil, fmt.Errorf("tuyaproto: datapoint payload too large (%d bytes)", len(data))
	}
	payload := make([]byte, 0, 4+len(data))
	payload = append(payload, f.DatapointID(), byte(f.DatapointType()))
	payload = append(payload, byte(len(data)>>8), byte(len(data)))
	payload = append(payload, data...)
	return EncodeSimple(f.Version(), f.Command(), payload), nil
}

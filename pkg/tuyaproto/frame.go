// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuyaproto

import "time"

// Frame represents a decoded Tuya serial protocol frame (the "Parsed
// frame" of spec.md §3).
type Frame struct {
	origin    Port
	version   uint8
	command   uint8
	hasDP     bool
	dpID      uint8
	dpType    DatapointType
	payload   []byte // datapoint data, or the command's raw payload when hasDP is false
	timestamp time.Time
}

// NewFrame builds a non-datapoint frame (commands other than 6/7).
func NewFrame(origin Port, version, command uint8, payload []byte) Frame {
	return Frame{
		origin:    origin,
		version:   version,
		command:   command,
		payload:   payload,
		timestamp: time.Now(),
	}
}

// NewDatapointFrame builds a datapoint-bearing frame (command 6 or 7).
func NewDatapointFrame(origin Port, version, command, dpID uint8, dpType DatapointType, data []byte) Frame {
	return Frame{
		origin:    origin,
		version:   version,
		command:   command,
		hasDP:     true,
		dpID:      dpID,
		dpType:    dpType,
		payload:   data,
		timestamp: time.Now(),
	}
}

func (f Frame) Origin() Port             { return f.origin }
func (f Frame) Version() uint8           { return f.version }
func (f Frame) Command() uint8           { return f.command }
func (f Frame) HasDatapoint() bool       { return f.hasDP }
func (f Frame) DatapointID() uint8       { return f.dpID }
func (f Frame) DatapointType() DatapointType { return f.dpType }
func (f Frame) Payload() []byte          { return f.payload }
func (f Frame) Timestamp() time.Time     { return f.timestamp }

// Int32 interprets the payload as a 32-bit signed big-endian integer, the
// wire representation of datapoint type "int".
func (f Frame) Int32() int32 {
	if len(f.payload) < 4 {
		return 0
	}
	return int32(uint32(f.payload[0])<<24 | uint32(f.payload[1])<<16 | uint32(f.payload[2])<<8 | uint32(f.payload[3]))
}

// Byte returns the first payload byte, the wire representation of
// datapoint types "bool" and "enum".
func (f Frame) Byte() uint8 {
	if len(f.payload) == 0 {
		return 0
	}
	return f.payload[0]
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuyaproto

import "fmt"

// FormatCommand returns the human-readable name for a command code.
func FormatCommand(command uint8) string {
	switch command {
	case CmdHeartbeat:
		return "HEARTBEAT"
	case CmdProductQuery:
		return "PRODUCT_QUERY"
	case CmdWorkingModeAck:
		return "WORKING_MODE_ACK"
	case CmdWifiStatus:
		return "WIFI_STATUS"
	case CmdWifiReset:
		return "WIFI_RESET"
	case CmdDatapointSet:
		return "DATAPOINT_SET"
	case CmdDatapointReport:
		return "DATAPOINT_REPORT"
	case CmdDatapointQuery:
		return "DATAPOINT_QUERY"
	case CmdLocalTime:
		return "LOCAL_TIME"
	default:
		return "UNKNOWN"
	}
}

// FormatFrame formats a decoded Frame into a one-line diagnostic string
// ending in a newline.
func FormatFrame(f Frame) string {
	ts := f.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s <- %s (0x%02X) ver=0x%02X", ts, FormatCommand(f.Command()), f.Origin(), f.Command(), f.Version())

	if !f.HasDatapoint() {
		if len(f.Payload()) > 0 {
			result += " " + formatHex(f.Payload())
		}
		return result + "\n"
	}

	result += fmt.Sprintf(" DP=%d type=%s", f.DatapointID(), f.DatapointType())
	switch f.DatapointType() {
	case TypeBool:
		state := "OFF"
		if f.Byte() != 0 {
			state = "ON"
		}
		result += fmt.Sprintf(" value=%s\n", state)
	case TypeEnum:
		result += fmt.Sprintf(" value=%d\n", f.Byte())
	case TypeInt:
		result += fmt.Sprintf(" value=%d\n", f.Int32())
	default:
		result += " " + formatHex(f.Payload()) + "\n"
	}
	return result
}

func formatHex(data []byte) string {
	result := "("
	for i, b := range data {
		if i > 0 {
			result += " "
		}
		result += fmt.Sprintf("%02X", b)
	}
	return result + ")"
}

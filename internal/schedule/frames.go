// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schedule

import (
	"time"

	"github.com/Thermoquad/tuyabridge/pkg/tuyaproto"
)

func encodeSimpleHeartbeat() []byte {
	return tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdHeartbeat, nil)
}

func encodeWifiStatus(connected int) []byte {
	return tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdWifiStatus, []byte{byte(connected)})
}

func encodeLocalTime(now time.Time, synced bool) []byte {
	if !synced {
		return tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdLocalTime, []byte{0, 0, 0, 0, 0, 0, 0, 0})
	}
	payload := []byte{
		1,
		uint8(now.Year() - 2000),
		uint8(now.Month()),
		uint8(now.Day()),
		uint8(now.Hour()),
		uint8(now.Minute()),
		uint8(now.Second()),
		uint8(now.Weekday()),
	}
	return tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdLocalTime, payload)
}

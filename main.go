// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// tuyabridge - Tuya serial protocol bridge controller
//
// Stands in for a thermostat's Wifi module on its Tuya serial access
// protocol link: answers heartbeats, interprets datapoint reports, drives
// the weekly schedule, and serves a local UI bus, without phoning out to
// Tuya's cloud.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/tuyabridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

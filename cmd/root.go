// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// MCU-facing serial connection flags. This link always exists: it is
	// the thermostat's display/sensor board, and the bridge always owns it.
	mcuPort string
	baud    int

	// Wifi-side link, used only by the sniff command to mirror traffic
	// between the MCU and whatever used to sit in the Wifi module's place.
	// Either a second serial port or a websocket dial target may be given,
	// mirroring the serial/websocket duality of the MCU link one level down.
	wifiPort        string
	wifiURL         string
	wifiUsername    string
	wifiNoSSLVerify bool

	// UI bus: the bridge serves its own websocket endpoint for local
	// dashboards/automation, gated by HTTP Basic auth when a username is
	// set (password via TUYA_UI_PASSWORD env var or interactive prompt).
	uiAddr     string
	uiUsername string

	espControls bool
)

var rootCmd = &cobra.Command{
	Use:   "tuyabridge",
	Short: "Tuya serial protocol bridge controller",
	Long: `tuyabridge replaces a thermostat's Wifi module on the Tuya serial
access protocol link, interpreting and answering the MCU directly instead
of phoning out to Tuya's cloud.

Connection modes:
  MCU link (always):  --port /dev/ttyUSB0 [--baud 9600]
  Wifi link (sniff only):
    Serial:    --wifi-port /dev/ttyUSB1
    WebSocket: --wifi-url ws://host/path [--wifi-username user]

The local UI bus is served over WebSocket at --ui-addr. When --ui-username
is set, clients authenticate with HTTP Basic auth; the password is read
from the TUYA_UI_PASSWORD environment variable, or prompted interactively
if not set. There is intentionally no --ui-password flag, to avoid leaking
credentials into shell history.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&mcuPort, "port", "p", "", "MCU-facing serial port device")
	rootCmd.PersistentFlags().IntVarP(&baud, "baud", "b", 9600, "Baud rate of the MCU link")

	rootCmd.PersistentFlags().StringVar(&wifiPort, "wifi-port", "", "Wifi-side serial port device (sniff only)")
	rootCmd.PersistentFlags().StringVar(&wifiURL, "wifi-url", "", "Wifi-side WebSocket URL, ws:// or wss:// (sniff only)")
	rootCmd.PersistentFlags().StringVar(&wifiUsername, "wifi-username", "", "Username for the Wifi-side WebSocket's HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wifiNoSSLVerify, "wifi-no-ssl-verify", false, "Skip TLS certificate verification for the Wifi-side WebSocket (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&uiAddr, "ui-addr", ":8080", "Address to serve the local UI WebSocket bus on")
	rootCmd.PersistentFlags().StringVar(&uiUsername, "ui-username", "", "Username required for UI WebSocket clients (HTTP Basic auth)")

	rootCmd.PersistentFlags().BoolVar(&espControls, "esp-controls", false, "Start with this bridge, rather than the MCU, driving the heating decision")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

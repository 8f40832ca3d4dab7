// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyabridge/internal/linkbridge"
	"github.com/Thermoquad/tuyabridge/pkg/tuyaproto"
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Mirror MCU<->Wifi traffic and print every decoded frame",
	Long: `sniff sits between the MCU and the Wifi module, forwarding every raw
byte unmodified in both directions while printing each decoded frame.
Typed commands on stdin are parsed with the same grammar as the original
console tool and injected onto either link:

  <M|W> <command> [dp-id data-type data...]

M or W selects the destination link (MCU or Wifi); command, dp-id,
data-type, and data are decimal. For commands 6 (set datapoint) or 7
(report datapoint) the next two numbers are the datapoint ID and data
type; everything after that is literal data bytes.

  M 0        -> heartbeat sent to the MCU link
  W 3 0      -> command 3 (Wi-Fi status) with one payload byte 0, sent
                to the Wifi link`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
}

func runSniff(_ *cobra.Command, _ []string) error {
	mcuConn, err := OpenMCUConnection()
	if err != nil {
		return err
	}
	defer mcuConn.Close()

	wifiConn, label, err := OpenWifiConnection()
	if err != nil {
		return err
	}
	defer wifiConn.Close()
	log.Printf("sniff: Wifi link is %s", label)

	br := linkbridge.New(mcuConn, wifiConn)
	br.Passthrough = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go readConsoleCommands(ctx, br)

	print := func(f tuyaproto.Frame) { fmt.Println(tuyaproto.FormatFrame(f)) }
	logErr := func(origin tuyaproto.Port, err error) {
		log.Printf("sniff: decode error on %s: %v", origin, err)
	}

	err = br.Run(ctx, print, print, logErr)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// readConsoleCommands implements the original console command grammar:
// destination (M/W), command, and for datapoint commands a datapoint ID
// and data type, followed by any number of literal data bytes.
func readConsoleCommands(ctx context.Context, br *linkbridge.Bridge) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		wire, port, err := parseConsoleCommand(line)
		if err != nil {
			log.Printf("sniff: %v", err)
			continue
		}
		target := br.MCU
		if port == tuyaproto.PortWifi {
			target = br.Wifi
		}
		if err := target.WriteFrame(wire); err != nil {
			log.Printf("sniff: write to %s failed: %v", port, err)
		}
	}
}

func parseConsoleCommand(line string) ([]byte, tuyaproto.Port, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, 0, fmt.Errorf("invalid command %q: need at least a destination and a command", line)
	}

	var port tuyaproto.Port
	var version uint8
	switch fields[0] {
	case "M", "m":
		port, version = tuyaproto.PortMCU, tuyaproto.VersionWifi
	case "W", "w":
		port, version = tuyaproto.PortWifi, tuyaproto.VersionMCU
	default:
		return nil, 0, fmt.Errorf("invalid destination %q: must be M or W", fields[0])
	}

	nums := make([]int64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		n, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, 0, fmt.Errorf("non-numeric field %q", f)
		}
		nums = append(nums, n)
	}

	command := uint8(nums[0])
	rest := nums[1:]

	if command == tuyaproto.CmdDatapointSet || command == tuyaproto.CmdDatapointReport {
		if len(rest) < 2 {
			return nil, 0, fmt.Errorf("datapoint command needs a datapoint ID and data type")
		}
		dpID := uint8(rest[0])
		dpType := tuyaproto.DatapointType(rest[1])
		data := make([]byte, 0, len(rest)-2)
		for _, n := range rest[2:] {
			data = append(data, byte(n))
		}
		wire, err := tuyaproto.EncodeFrame(tuyaproto.NewDatapointFrame(port, version, command, dpID, dpType, data))
		if err != nil {
			return nil, 0, err
		}
		return wire, port, nil
	}

	payload := make([]byte, 0, len(rest))
	for _, n := range rest {
		payload = append(payload, byte(n))
	}
	return tuyaproto.EncodeSimple(version, command, payload), port, nil
}

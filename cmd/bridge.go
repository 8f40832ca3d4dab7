// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyabridge/internal/clock"
	"github.com/Thermoquad/tuyabridge/internal/dispatcher"
	"github.com/Thermoquad/tuyabridge/internal/espctrl"
	"github.com/Thermoquad/tuyabridge/internal/linkbridge"
	"github.com/Thermoquad/tuyabridge/internal/schedule"
	"github.com/Thermoquad/tuyabridge/internal/uibus"
	"github.com/Thermoquad/tuyabridge/internal/uiencoder"
	"github.com/Thermoquad/tuyabridge/pkg/tuyaproto"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the bridge controller against the MCU serial link",
	Long: `bridge opens the MCU-facing serial port and takes over the role of the
thermostat's Wifi module: it answers heartbeats, interprets datapoint
reports, drives the weekly schedule, and serves a local UI bus over
WebSocket.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(_ *cobra.Command, _ []string) error {
	mcuConn, err := OpenMCUConnection()
	if err != nil {
		return err
	}
	defer mcuConn.Close()

	// No real Wifi module sits on the other port in bridge mode; linkbridge
	// still wants an io.ReadWriter for it, so hand it an in-memory pipe we
	// close on shutdown to unblock its idle reader goroutine.
	wifiLocal, wifiRemote := net.Pipe()
	defer wifiRemote.Close()

	br := linkbridge.New(mcuConn, wifiLocal)

	clk := clock.NewSystem()
	clk.MarkSynchronized() // the host clock is trusted in bridge mode, unlike the MCU's own RTC
	wifi := clock.StaticWifi(true)

	bus := uibus.New()
	state := dispatcher.NewState()
	state.SetESPControlsHeating(espControls)
	table := schedule.NewTable()

	encoder := uiencoder.New(br.MCU, state, table, nil)
	bus.SetApplier(encoder)

	ctrl := espctrl.New(state, encoder)
	encoder.SetController(ctrl)

	driver := schedule.NewDriver(br.MCU, bus, clk, wifi, table, encoder, func() int64 {
		return state.Snapshot().HeatingElapsedMs
	})

	disp := dispatcher.New(state, bus, br.MCU, clk, ctrl, driver, table, driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go driver.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", uiWebSocketHandler(bus))
	httpServer := &http.Server{Addr: uiAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("bridge: UI server failed: %v", err)
		}
	}()
	defer httpServer.Close()

	log.Printf("bridge: listening for UI clients on %s/ws", uiAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- br.Run(ctx, disp.HandleFrame, nil, func(origin tuyaproto.Port, err error) {
			log.Printf("bridge: decode error on %s: %v", origin, err)
		})
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// uiWebSocketHandler upgrades HTTP connections to the UI bus's WebSocket
// protocol, gating access with HTTP Basic auth when --ui-username is set.
func uiWebSocketHandler(bus *uibus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if uiUsername != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != uiUsername || pass != uiPassword() {
				w.Header().Set("WWW-Authenticate", `Basic realm="tuyabridge"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("bridge: websocket upgrade failed: %v", err)
			return
		}
		bus.ServeWebSocket(conn)
	}
}

var cachedUIPassword string

func uiPassword() string {
	if cachedUIPassword != "" {
		return cachedUIPassword
	}
	pw, err := GetPassword("TUYA_UI_PASSWORD")
	if err != nil {
		log.Printf("bridge: failed to read UI password: %v", err)
		return ""
	}
	cachedUIPassword = pw
	return cachedUIPassword
}

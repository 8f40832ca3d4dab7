// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package linkbridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/tuyabridge/pkg/tuyaproto"
)

func TestBridgeDispatchesMCUFrames(t *testing.T) {
	mcuServer, mcuClient := net.Pipe()
	wifiServer, wifiClient := net.Pipe()
	defer mcuClient.Close()
	defer wifiClient.Close()

	bridge := New(mcuServer, wifiServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan tuyaproto.Frame, 1)
	go bridge.Run(ctx, func(f tuyaproto.Frame) { received <- f }, nil, nil)

	wire := tuyaproto.EncodeSimple(tuyaproto.VersionMCU, tuyaproto.CmdHeartbeat, []byte{0})
	go func() {
		_, _ = mcuClient.Write(wire)
	}()

	select {
	case f := <-received:
		if f.Command() != tuyaproto.CmdHeartbeat {
			t.Errorf("command = %d, want %d", f.Command(), tuyaproto.CmdHeartbeat)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded frame")
	}
}

func TestPortWriteFrameSerializesWriters(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	port := NewPort(tuyaproto.PortMCU, server)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 64)
		for i := 0; i < 10; i++ {
			_, _ = client.Read(buf)
		}
		close(done)
	}()

	for i := 0; i < 10; i++ {
		go func() {
			_ = port.WriteFrame(tuyaproto.EncodeSimple(tuyaproto.VersionWifi, tuyaproto.CmdHeartbeat, nil))
		}()
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for concurrent writes")
	}
}

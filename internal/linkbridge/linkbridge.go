// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package linkbridge implements component B: it owns the MCU-facing and
// Wifi-facing serial connections, runs one byte-reassembly loop per port,
// and serializes writes to each so multiple goroutines (the dispatcher's
// replies, the schedule driver's heartbeats, the UI encoder's datapoint
// sets) can share a single physical link safely.
package linkbridge

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/Thermoquad/tuyabridge/pkg/tuyaproto"
)

// FrameHandler processes one decoded frame arriving on a port.
type FrameHandler func(tuyaproto.Frame)

// ErrorHandler is notified of a non-fatal decode error (a dropped
// preamble, an invalid length, a checksum mismatch) — diagnostic only,
// the decoder has already recovered by the time this is called.
type ErrorHandler func(origin tuyaproto.Port, err error)

// Port pairs a physical connection with the one Decoder that must own it
// (spec.md §4.A: never share a Decoder across ports) and a mutex that
// serializes writers, mirroring the original firmware's writeMutex: the
// dispatcher, the schedule driver, and the UI encoder all write frames to
// the MCU port concurrently and must not interleave.
type Port struct {
	Origin tuyaproto.Port
	conn   io.ReadWriter

	writeMu sync.Mutex
	decoder *tuyaproto.Decoder
}

// NewPort wraps a connection for one physical port.
func NewPort(origin tuyaproto.Port, conn io.ReadWriter) *Port {
	return &Port{Origin: origin, conn: conn, decoder: tuyaproto.NewDecoder(origin)}
}

// WriteFrame writes an already-encoded wire frame, serialized against any
// concurrent writer on the same port. It satisfies dispatcher.FrameWriter,
// uiencoder.FrameWriter, and schedule.FrameWriter.
func (p *Port) WriteFrame(wire []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.conn.Write(wire)
	return err
}

func (p *Port) writeRaw(b byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.conn.Write([]byte{b})
	return err
}

// run reads one byte at a time and feeds the port's decoder until ctx is
// canceled or the connection errors out. mirror, when non-nil, receives
// every raw byte before decoding — used for sniffer-mode passthrough to
// the other physical port.
func (p *Port) run(ctx context.Context, onFrame FrameHandler, onError ErrorHandler, mirror func(byte)) error {
	buf := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.conn.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if mirror != nil {
			mirror(buf[0])
		}
		frame, derr := p.decoder.DecodeByte(buf[0])
		if derr != nil {
			if onError != nil {
				onError(p.Origin, derr)
			}
			continue
		}
		if frame != nil && onFrame != nil {
			onFrame(*frame)
		}
	}
}

// Bridge owns both physical ports. In normal operation only the MCU
// port's frames are dispatched (component C only ever interprets
// MCU-originated frames); the Wifi port exists for the sniffer/pass-
// through build, where raw bytes are mirrored between the two links
// unmodified, exactly as the original firmware's USE_SNIFFER path does in
// readUart.
type Bridge struct {
	MCU  *Port
	Wifi *Port

	// Passthrough, when true, mirrors every byte read from one port onto
	// the other's raw connection, independent of frame decoding.
	Passthrough bool
}

// New constructs a Bridge over already-open connections.
func New(mcuConn, wifiConn io.ReadWriter) *Bridge {
	return &Bridge{
		MCU:  NewPort(tuyaproto.PortMCU, mcuConn),
		Wifi: NewPort(tuyaproto.PortWifi, wifiConn),
	}
}

// Run starts both reader loops and returns once both have ended, with the
// first error other than cancellation. A loop checks ctx only between
// reads: after ctx is canceled or the other port fails, a loop blocked in
// Read keeps Run waiting until that Read returns. onMCUFrame receives
// every frame decoded from the MCU link; onWifiFrame (which may be nil) receives frames decoded
// from the Wifi link, used only by the sniffer command.
func (b *Bridge) Run(ctx context.Context, onMCUFrame, onWifiFrame FrameHandler, onError ErrorHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mcuMirror, wifiMirror func(byte)
	if b.Passthrough {
		mcuMirror = func(raw byte) {
			if err := b.Wifi.writeRaw(raw); err != nil {
				log.Printf("linkbridge: passthrough MCU->Wifi write failed: %v", err)
			}
		}
		wifiMirror = func(raw byte) {
			if err := b.MCU.writeRaw(raw); err != nil {
				log.Printf("linkbridge: passthrough Wifi->MCU write failed: %v", err)
			}
		}
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		errCh <- b.MCU.run(ctx, onMCUFrame, onError, mcuMirror)
	}()
	go func() {
		defer wg.Done()
		errCh <- b.Wifi.run(ctx, onWifiFrame, onError, wifiMirror)
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	wg.Wait()
	return firstErr
}

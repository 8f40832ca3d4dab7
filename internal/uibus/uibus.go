// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package uibus is the in-process key/value pub-sub bus standing in for
// the original firmware's wsJsonSend/parseJson pair: every datapoint the
// dispatcher interprets, and every schedule/statistics update, is
// published here as a (key, value) pair; WebSocket clients subscribe to
// receive them as JSON and push edits back the same way.
package uibus

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Update is one key/value change, serialized to JSON for WebSocket
// clients as {"key": "...", "value": "..."}, mirroring the original
// firmware's {"cfgGroup":"-1","<key>":"<value>"} shape minus the group
// tag, which this bridge has no use for.
type Update struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Applier receives an inbound UI edit and turns it into MCU traffic.
// Satisfied by *uiencoder.Encoder.
type Applier interface {
	ApplyUpdate(key, value string) error
}

// Bus fans out key/value updates to every subscribed WebSocket client and
// keeps the latest value of every key for newly connecting clients,
// analogous to the original firmware's updateConfigVect mirror table.
type Bus struct {
	mu      sync.RWMutex
	latest  map[string]string
	clients map[*websocket.Conn]chan Update
	applier Applier
}

// New creates an empty Bus. SetApplier must be called before any inbound
// client message can be processed.
func New() *Bus {
	return &Bus{
		latest:  make(map[string]string),
		clients: make(map[*websocket.Conn]chan Update),
	}
}

// SetApplier wires the encoder that turns inbound edits into MCU frames.
func (b *Bus) SetApplier(a Applier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applier = a
}

// Publish implements dispatcher.UIPublisher / schedule.UIPublisher: it
// records the latest value and fans it out to every connected client.
func (b *Bus) Publish(key, value string) {
	b.mu.Lock()
	b.latest[key] = value
	clients := make([]chan Update, 0, len(b.clients))
	for _, ch := range b.clients {
		clients = append(clients, ch)
	}
	b.mu.Unlock()

	update := Update{Key: key, Value: value}
	for _, ch := range clients {
		select {
		case ch <- update:
		default:
			log.Printf("uibus: dropping update for %s, subscriber channel full", key)
		}
	}
}

// Snapshot returns every key's latest published value, used to seed a
// freshly connected client before it starts receiving live updates.
func (b *Bus) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.latest))
	for k, v := range b.latest {
		out[k] = v
	}
	return out
}

// ServeWebSocket runs the bidirectional bridge for an already-upgraded
// WebSocket connection until the connection closes: outbound updates are
// written as JSON, inbound JSON {"key":...,"value":...} messages are
// handed to the Applier.
func (b *Bus) ServeWebSocket(conn *websocket.Conn) {
	ch := make(chan Update, 64)
	b.mu.Lock()
	b.clients[conn] = ch
	snapshot := make(map[string]string, len(b.latest))
	for k, v := range b.latest {
		snapshot[k] = v
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		close(ch)
		conn.Close()
	}()

	for k, v := range snapshot {
		if err := conn.WriteJSON(Update{Key: k, Value: v}); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go b.readLoop(conn, done)

	for {
		select {
		case update, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (b *Bus) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		var update Update
		if err := conn.ReadJSON(&update); err != nil {
			return
		}
		b.mu.RLock()
		applier := b.applier
		b.mu.RUnlock()
		if applier == nil {
			continue
		}
		if err := applier.ApplyUpdate(update.Key, update.Value); err != nil {
			log.Printf("uibus: rejected update %s=%s: %v", update.Key, update.Value, err)
		}
	}
}

// MarshalSnapshot renders the current key/value table as a single JSON
// object (the counterpart of the original firmware's buildJsonString).
func (b *Bus) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(b.Snapshot())
}

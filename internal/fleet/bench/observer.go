// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bench implements the Benchmark Observer: an out-of-core-scope
// adapter that subscribes to the remote market's own WebSocket feed and
// compares its freshness against the REST-mirrored record held in the
// state store, to measure how far the fleet's mirror trails the source.
package bench

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// priceTick is the subset of the remote WebSocket feed's message shape
// this observer cares about.
type priceTick struct {
	AssetID   string `json:"asset_id"`
	Timestamp string `json:"timestamp"`
}

// RecordLookup resolves the mirrored timestamp currently stored for an
// asset. Returns ok=false if nothing has been mirrored yet.
type RecordLookup func(ctx context.Context, assetID string) (timestamp string, ok bool)

// Observer connects to a remote WebSocket feed and reports the lag
// between a source-side tick and the fleet's own mirrored record.
type Observer struct {
	url    string
	lookup RecordLookup
}

// New builds an Observer that dials url and resolves mirrored freshness
// via lookup.
func New(url string, lookup RecordLookup) *Observer {
	return &Observer{url: url, lookup: lookup}
}

// Run connects and processes ticks until ctx is cancelled or the
// connection drops. Callers are expected to reconnect on error; a single
// Run call does not retry internally, matching the observer's role as a
// diagnostic tool rather than a production component.
func (o *Observer) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, o.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		o.handle(ctx, raw)
	}
}

func (o *Observer) handle(ctx context.Context, raw []byte) {
	var tick priceTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return
	}
	if tick.AssetID == "" {
		return
	}

	mirrored, ok := o.lookup(ctx, tick.AssetID)
	if !ok {
		log.Printf("bench: %s not yet mirrored", tick.AssetID)
		return
	}

	lag, err := lagMillis(tick.Timestamp, mirrored)
	if err != nil {
		log.Printf("bench: %s timestamp comparison failed: %v", tick.AssetID, err)
		return
	}
	log.Printf("bench: %s mirror lag %dms", tick.AssetID, lag)
}

// lagMillis computes sourceTS - mirroredTS in milliseconds. Both
// timestamps are parsed as decimal millisecond epoch strings.
func lagMillis(sourceTS, mirroredTS string) (int64, error) {
	src, err := strconv.ParseInt(sourceTS, 10, 64)
	if err != nil {
		return 0, err
	}
	mirrored, err := strconv.ParseInt(mirroredTS, 10, 64)
	if err != nil {
		return 0, err
	}
	return src - mirrored, nil
}

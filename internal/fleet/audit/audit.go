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

// Package audit provides an optional, best-effort fan-out of accepted
// snapshots (SPEC_FULL.md §2.11) to a durable side channel: Kafka for a
// replayable log, Postgres for a queryable table. Fetchers call Record in
// a background goroutine after a CAS update succeeds; a failing or slow
// audit sink never blocks or fails the fetch path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"obmirror/internal/fleet"
)

// Sink is the fan-out target a Worker records accepted snapshots to.
// Record must not block the caller for long; implementations are
// expected to apply their own timeout internally.
type Sink interface {
	Record(ctx context.Context, ob fleet.Snapshot)
}

// Noop discards every record. It is the default when no audit backend is
// configured.
type Noop struct{}

func (Noop) Record(context.Context, fleet.Snapshot) {}

// Entry is the serialized record written to the durable side channel. The
// CommitID is deterministic (asset + hash) so a retried publish or a
// duplicate delivery from the broker lands as a no-op downstream, mirroring
// the idempotency contract the other adapters in this codebase enforce.
type Entry struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
	CommitID  string `json:"commit_id"`
	RecordsAt int64  `json:"records_at_unix_ms"`
}

func newEntry(ob fleet.Snapshot) Entry {
	return Entry{
		AssetID:   ob.AssetID,
		Market:    ob.Market,
		Hash:      ob.Hash,
		Timestamp: ob.Timestamp,
		CommitID:  fmt.Sprintf("%s:%s", ob.AssetID, ob.Hash),
		RecordsAt: time.Now().UnixMilli(),
	}
}

func marshal(ob fleet.Snapshot) ([]byte, Entry, error) {
	e := newEntry(ob)
	b, err := json.Marshal(e)
	return b, e, err
}

func logDropped(backend string, ob fleet.Snapshot, err error) {
	log.Printf("audit[%s]: dropping record for %s: %v", backend, ob.AssetID, err)
}

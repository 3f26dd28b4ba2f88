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

// Package store contains unit tests for the CAS upsert gate, exercised
// against an in-memory fake of the Evaler interface so the gate logic is
// verified without a running Redis instance.
package store

import (
	"context"
	"testing"

	"obmirror/internal/fleet"
)

// fakeEvaler is a minimal in-memory stand-in for a scripting-capable
// client, sufficient to drive casScript's branches deterministically.
type fakeEvaler struct {
	records   map[string]map[string]string
	published []string
}

func newFakeEvaler() *fakeEvaler {
	return &fakeEvaler{records: map[string]map[string]string{}}
}

func (f *fakeEvaler) Eval(_ context.Context, _ string, keys []string, args ...interface{}) (interface{}, error) {
	key := keys[0]
	if len(args) == 0 {
		rec, ok := f.records[key]
		if !ok {
			return nil, nil
		}
		return rec["timestamp"], nil
	}
	newHash := args[0].(string)
	newTS := args[1].(string)

	rec, ok := f.records[key]
	if ok && rec["hash"] == newHash {
		return "skip_hash", nil
	}
	if ok && lessTS(newTS, rec["timestamp"]) {
		return "skip_ts", nil
	}
	f.records[key] = map[string]string{
		"hash":      newHash,
		"timestamp": newTS,
		"bids":      args[2].(string),
		"asks":      args[3].(string),
		"updated_at": args[4].(string),
		"market":    args[5].(string),
	}
	return "updated", nil
}

func (f *fakeEvaler) Publish(_ context.Context, _ string, message interface{}) error {
	f.published = append(f.published, string(message.([]byte)))
	return nil
}

func lessTS(a, b string) bool {
	// both are decimal integer strings in these tests
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// TestCASUpsert_S1_FirstSnapshotAccepted mirrors SPEC_FULL.md §8 scenario S1.
func TestCASUpsert_S1_FirstSnapshotAccepted(t *testing.T) {
	ev := newFakeEvaler()
	s := New(ev)

	ob := fleet.Snapshot{
		Market: "M", AssetID: "A", Hash: "h1", Timestamp: "1000",
		Bids: []fleet.Level{{"0.50", "10"}}, Asks: []fleet.Level{{"0.51", "8"}},
	}
	result, err := s.CASUpsert(context.Background(), ob, 1)
	if err != nil {
		t.Fatalf("CASUpsert: %v", err)
	}
	if result != Updated {
		t.Fatalf("expected Updated, got %s", result)
	}
}

// TestCASUpsert_S2_DuplicateHash mirrors scenario S2.
func TestCASUpsert_S2_DuplicateHash(t *testing.T) {
	ev := newFakeEvaler()
	s := New(ev)
	ob := fleet.Snapshot{AssetID: "A", Hash: "h1", Timestamp: "1000"}
	if _, err := s.CASUpsert(context.Background(), ob, 1); err != nil {
		t.Fatalf("seed CASUpsert: %v", err)
	}

	result, err := s.CASUpsert(context.Background(), ob, 2)
	if err != nil {
		t.Fatalf("CASUpsert: %v", err)
	}
	if result != SkipHash {
		t.Fatalf("expected SkipHash, got %s", result)
	}
}

// TestCASUpsert_S3_StaleTimestamp mirrors scenario S3.
func TestCASUpsert_S3_StaleTimestamp(t *testing.T) {
	ev := newFakeEvaler()
	s := New(ev)
	seed := fleet.Snapshot{AssetID: "A", Hash: "h1", Timestamp: "1000"}
	if _, err := s.CASUpsert(context.Background(), seed, 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stale := fleet.Snapshot{AssetID: "A", Hash: "h0", Timestamp: "900"}
	result, err := s.CASUpsert(context.Background(), stale, 2)
	if err != nil {
		t.Fatalf("CASUpsert: %v", err)
	}
	if result != SkipTS {
		t.Fatalf("expected SkipTS, got %s", result)
	}
	if ev.records["ob:A"]["hash"] != "h1" {
		t.Fatalf("stale snapshot must not overwrite the record")
	}
}

// TestCASUpsert_S4_NewSnapshot mirrors scenario S4.
func TestCASUpsert_S4_NewSnapshot(t *testing.T) {
	ev := newFakeEvaler()
	s := New(ev)
	seed := fleet.Snapshot{AssetID: "A", Hash: "h1", Timestamp: "1000"}
	if _, err := s.CASUpsert(context.Background(), seed, 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	next := fleet.Snapshot{AssetID: "A", Hash: "h2", Timestamp: "1005"}
	result, err := s.CASUpsert(context.Background(), next, 2)
	if err != nil {
		t.Fatalf("CASUpsert: %v", err)
	}
	if result != Updated {
		t.Fatalf("expected Updated, got %s", result)
	}
	if ev.records["ob:A"]["hash"] != "h2" {
		t.Fatalf("expected record to be replaced with h2")
	}
}

// TestCASUpsert_HashGateBeforeTimestampGate verifies the subtlety in
// SPEC_FULL.md §4.5: a stale re-delivery of the *current* snapshot returns
// SkipHash, not SkipTS, even though its timestamp is also not newer.
func TestCASUpsert_HashGateBeforeTimestampGate(t *testing.T) {
	ev := newFakeEvaler()
	s := New(ev)
	seed := fleet.Snapshot{AssetID: "A", Hash: "h1", Timestamp: "1000"}
	if _, err := s.CASUpsert(context.Background(), seed, 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := s.CASUpsert(context.Background(), seed, 2)
	if err != nil {
		t.Fatalf("CASUpsert: %v", err)
	}
	if result != SkipHash {
		t.Fatalf("expected SkipHash to take priority, got %s", result)
	}
}

// TestPublish_ForwardsOnePayload verifies the Publish helper marshals and
// forwards the snapshot to the given channel; the "publish only on
// Updated" decision itself lives in the fetcher pipeline, not here.
func TestPublish_ForwardsOnePayload(t *testing.T) {
	ev := newFakeEvaler()
	s := New(ev)
	ob := fleet.Snapshot{AssetID: "A", Hash: "h1", Timestamp: "1000"}
	if err := s.Publish(context.Background(), UpdatesChannel, ob); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(ev.published) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(ev.published))
	}
}

// TestTimestamp_ReturnsMirroredValueOrNotOK exercises the lookup the
// Benchmark Observer uses to compute mirror lag.
func TestTimestamp_ReturnsMirroredValueOrNotOK(t *testing.T) {
	ev := newFakeEvaler()
	s := New(ev)

	if _, ok, err := s.Timestamp(context.Background(), "A"); err != nil || ok {
		t.Fatalf("expected not-ok for an unmirrored asset, got ok=%v err=%v", ok, err)
	}

	seed := fleet.Snapshot{AssetID: "A", Hash: "h1", Timestamp: "1000"}
	if _, err := s.CASUpsert(context.Background(), seed, 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ts, ok, err := s.Timestamp(context.Background(), "A")
	if err != nil || !ok {
		t.Fatalf("expected ok for a mirrored asset, got ok=%v err=%v", ok, err)
	}
	if ts != "1000" {
		t.Fatalf("timestamp = %q, want 1000", ts)
	}
}

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

// Package store wraps the State Store: a keyed record per asset plus a
// pub/sub channel, both backed by a server that supports atomic
// server-side scripting. The linchpin is CASUpsert, the atomic
// compare-and-set update described in SPEC_FULL.md §4.5.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"obmirror/internal/fleet"
)

// Result is the outcome of a CASUpsert call.
type Result string

const (
	// Updated means the record was overwritten and the caller must publish.
	Updated Result = "updated"
	// SkipHash means the incoming hash matches the stored hash; a stale
	// re-delivery of the current snapshot. Takes priority over SkipTS.
	SkipHash Result = "skip_hash"
	// SkipTS means the incoming timestamp is older than the stored one.
	SkipTS Result = "skip_ts"
)

// Evaler abstracts the minimal surface needed from a scripting-capable
// key/value store client. Implementations may wrap
// github.com/redis/go-redis/v9's Cmdable.Eval or any equivalent.
type Evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Store is the State Store Interface consumed by the Fetcher pipeline.
type Store struct {
	client Evaler
}

// New wraps an Evaler-capable client as a Store.
func New(client Evaler) *Store {
	return &Store{client: client}
}

func recordKey(assetID string) string { return fmt.Sprintf("ob:%s", assetID) }

// casScript implements the gate from SPEC_FULL.md §4.5:
//  1. if stored hash equals the new hash: skip_hash (checked first — a
//     stale re-delivery of the current snapshot is observationally the
//     same as a stale timestamp but is reported distinctly for metrics).
//  2. if the new timestamp is older than the stored one: skip_ts.
//  3. otherwise overwrite every field atomically and report updated.
const casScript = `
local key = KEYS[1]
local new_hash = ARGV[1]
local new_ts = ARGV[2]
local bids_json = ARGV[3]
local asks_json = ARGV[4]
local now_ms = ARGV[5]
local market = ARGV[6]

local cur_hash = redis.call('HGET', key, 'hash')
if cur_hash == new_hash then
  return 'skip_hash'
end

local cur_ts = redis.call('HGET', key, 'timestamp')
if cur_ts and tonumber(new_ts) < tonumber(cur_ts) then
  return 'skip_ts'
end

redis.call('HSET', key,
  'hash', new_hash,
  'timestamp', new_ts,
  'bids', bids_json,
  'asks', asks_json,
  'updated_at', now_ms,
  'market', market)

return 'updated'
`

// CASUpsert atomically applies ob to the record at ob:{AssetID}, gated by
// hash equality then timestamp monotonicity, and returns which branch of
// the gate fired. nowMS is the local ingest time recorded as updated_at.
func (s *Store) CASUpsert(ctx context.Context, ob fleet.Snapshot, nowMS int64) (Result, error) {
	bids, err := json.Marshal(ob.Bids)
	if err != nil {
		return "", fmt.Errorf("store: marshal bids: %w", err)
	}
	asks, err := json.Marshal(ob.Asks)
	if err != nil {
		return "", fmt.Errorf("store: marshal asks: %w", err)
	}

	reply, err := s.client.Eval(ctx, casScript, []string{recordKey(ob.AssetID)},
		ob.Hash, ob.Timestamp, string(bids), string(asks), strconv.FormatInt(nowMS, 10), ob.Market)
	if err != nil {
		return "", fmt.Errorf("store: cas_upsert %s: %w", ob.AssetID, err)
	}

	switch v := reply.(type) {
	case string:
		return Result(v), nil
	case []byte:
		return Result(v), nil
	default:
		return "", fmt.Errorf("store: unexpected cas_upsert reply type %T", reply)
	}
}

// Publish publishes ob's JSON encoding on channel, used for the ob_updates
// notification channel after a successful CASUpsert.
func (s *Store) Publish(ctx context.Context, channel string, ob fleet.Snapshot) error {
	payload, err := json.Marshal(ob)
	if err != nil {
		return fmt.Errorf("store: marshal publish payload: %w", err)
	}
	if err := s.client.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("store: publish %s: %w", ob.AssetID, err)
	}
	return nil
}

// UpdatesChannel is the pub/sub channel name for order-book change
// notifications.
const UpdatesChannel = "ob_updates"

const timestampScript = `return redis.call('HGET', KEYS[1], 'timestamp')`

// Timestamp returns the currently mirrored timestamp for assetID, used by
// the Benchmark Observer to measure mirror lag against the source feed.
// ok is false when nothing has been mirrored for assetID yet.
func (s *Store) Timestamp(ctx context.Context, assetID string) (ts string, ok bool, err error) {
	reply, err := s.client.Eval(ctx, timestampScript, []string{recordKey(assetID)})
	if err != nil {
		return "", false, fmt.Errorf("store: timestamp %s: %w", assetID, err)
	}
	switch v := reply.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	default:
		return "", false, fmt.Errorf("store: unexpected timestamp reply type %T", reply)
	}
}

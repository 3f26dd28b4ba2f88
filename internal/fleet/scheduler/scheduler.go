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

// Package scheduler implements the Controller's global dispatch
// scheduler: it staggers fetch commands across N fetcher endpoints so
// aggregate request rate matches the configured ceiling of 20 requests
// per second per node, per SPEC_FULL.md §4.1.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"obmirror/internal/fleet"
	"obmirror/internal/fleet/metrics"
	"obmirror/internal/fleet/transport"
)

// ratePerNode is the per-fetcher fetch ceiling named throughout the spec.
const ratePerNode = 20

// SendFunc dispatches a single command to a fetcher endpoint. The default
// wraps transport.Send; tests substitute a fake to observe dispatch
// without a network.
type SendFunc func(addr string, cmd fleet.Command) error

// Scheduler rotates a batch window across the token universe and emits
// Dispatch Commands to the fleet's fetcher endpoints.
type Scheduler struct {
	tokens    []string
	fetchers  []string
	batchSize int
	send      SendFunc
}

// New builds a Scheduler. Rejects an empty fetcher list per
// SPEC_FULL.md §4.1's edge case ("N = 0: rejected at startup").
func New(tokens, fetchers []string) (*Scheduler, error) {
	if len(fetchers) == 0 {
		return nil, errNoFetchers
	}
	return &Scheduler{
		tokens:    tokens,
		fetchers:  fetchers,
		batchSize: BatchSize(len(tokens), len(fetchers)),
		send:      defaultSend,
	}, nil
}

var errNoFetchers = errors.New("scheduler: fetch_nodes must be non-empty")

func defaultSend(addr string, cmd fleet.Command) error {
	return transport.Send(addr, cmd, 1200*time.Millisecond, 2*time.Second)
}

// BatchSize implements the batch-size formula from SPEC_FULL.md §4.1:
// B ~= ceil(|T| / (20*N)) + 1, so the whole universe is covered within
// about 1s of wall time at the RPS ceiling. Per §9, the result may exceed
// |T|; duplicated tokens within one batch pass through unchanged.
func BatchSize(tokenCount, fetcherCount int) int {
	if tokenCount == 0 || fetcherCount == 0 {
		return 0
	}
	denom := ratePerNode * fetcherCount
	return (tokenCount+denom-1)/denom + 1
}

// tickInterval is the global pacing step Δ = 1/(20*N) seconds.
func (s *Scheduler) tickInterval() time.Duration {
	n := len(s.fetchers)
	return time.Duration(float64(time.Second) / float64(ratePerNode*n))
}

// offsetFor computes the slice offset for fetcher index i at epochSec,
// per SPEC_FULL.md §4.1 step 1: o = (epoch_s + i) mod |T|.
func (s *Scheduler) offsetFor(epochSec int64, i int) int {
	n := len(s.tokens)
	if n == 0 {
		return 0
	}
	o := (int(epochSec) + i) % n
	if o < 0 {
		o += n
	}
	return o
}

// batchFor returns the contiguous, wrap-around batch of batchSize tokens
// starting at offset. Duplicates occur when batchSize exceeds |T|.
func (s *Scheduler) batchFor(offset int) []string {
	n := len(s.tokens)
	batch := make([]string, s.batchSize)
	for k := range batch {
		batch[k] = s.tokens[(offset+k)%n]
	}
	return batch
}

// dispatchOne sends one command to fetcher index i using the token
// universe state at "now". A no-op when the token universe is empty, per
// SPEC_FULL.md §4.1's "|T| = 0: scheduler no-ops but still ticks".
func (s *Scheduler) dispatchOne(i int, now time.Time) {
	if len(s.tokens) == 0 {
		return
	}
	offset := s.offsetFor(now.Unix(), i)
	cmd := fleet.Command{Tokens: s.batchFor(offset), Trigger: true}

	if err := s.send(s.fetchers[i], cmd); err != nil {
		log.Printf("scheduler: dispatch to %s failed: %v", s.fetchers[i], err)
		metrics.CommandsSentTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.CommandsSentTotal.WithLabelValues("ok").Inc()
}

// Run drives the global tick cadence until ctx is cancelled. Send
// failures are logged and never abort the loop; next_tick advances
// unconditionally so average pacing holds regardless of transient send
// latency (SPEC_FULL.md §4.1 rationale).
func (s *Scheduler) Run(ctx context.Context) {
	delta := s.tickInterval()
	nextTick := time.Now().Add(200 * time.Millisecond)
	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.dispatchOne(i, time.Now())
		i = (i + 1) % len(s.fetchers)

		nextTick = nextTick.Add(delta)
		if !sleepUntil(ctx, nextTick) {
			return
		}
	}
}

// sleepUntil blocks until t or ctx cancellation, reporting whether it
// woke up because of t (true) rather than cancellation (false).
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

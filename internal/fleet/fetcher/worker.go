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

// Package fetcher implements the Fetcher Worker: it accepts framed
// dispatch commands, holds the sticky last-known token batch, runs the
// fetch -> normalize -> conditional-upsert pipeline, and feeds the State
// Store Interface.
//
// Per SPEC_FULL.md §4.4 (adopting the redesign recommended in spec.md
// §9), the sticky last_tokens is owned by a single mutex-guarded field on
// the Worker rather than cloned per connection handler, so a command
// arriving without tokens is answered consistently regardless of which
// handler reads it. A bounded semaphore caps in-flight fetches at
// capacity_rps.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"obmirror/internal/fleet"
	"obmirror/internal/fleet/metrics"
	"obmirror/internal/fleet/store"
	"obmirror/internal/fleet/transport"
)

// MarketClient is the subset of market.Client the worker depends on.
type MarketClient interface {
	PostBooks(ctx context.Context, tokens []string) ([]fleet.Snapshot, error)
}

// StateStore is the subset of store.Store the worker depends on.
type StateStore interface {
	CASUpsert(ctx context.Context, ob fleet.Snapshot, nowMS int64) (store.Result, error)
	Publish(ctx context.Context, channel string, ob fleet.Snapshot) error
}

// AuditSink is the optional best-effort fan-out described in
// SPEC_FULL.md §2.11. A nil AuditSink disables it entirely.
type AuditSink interface {
	Record(ctx context.Context, ob fleet.Snapshot)
}

// Worker is one Fetcher node.
type Worker struct {
	nodeID         string
	market         MarketClient
	store          StateStore
	audit          AuditSink
	commandTimeout time.Duration
	fetchTimeout   time.Duration

	sem chan struct{} // capacity_rps in-flight bound

	stickyMu sync.Mutex
	sticky   []string

	listener net.Listener
	wg       sync.WaitGroup
	stopped  chan struct{}
	once     sync.Once
}

// New builds a Fetcher Worker. capacityRPS bounds in-flight command
// handling; commandTimeout bounds the read of a single command frame.
func New(nodeID string, mkt MarketClient, st StateStore, audit AuditSink, capacityRPS int64, commandTimeout time.Duration) *Worker {
	if capacityRPS <= 0 {
		capacityRPS = 20
	}
	return &Worker{
		nodeID:         nodeID,
		market:         mkt,
		store:          st,
		audit:          audit,
		commandTimeout: commandTimeout,
		fetchTimeout:   10 * time.Second,
		sem:            make(chan struct{}, capacityRPS),
		stopped:        make(chan struct{}),
	}
}

// Listen binds addr and returns the resolved address, so callers (and
// tests) can discover an ephemeral port before Serve starts accepting.
func (w *Worker) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("fetcher %s: listen %s: %w", w.nodeID, addr, err)
	}
	w.listener = ln
	return ln.Addr().String(), nil
}

// ListenAndServe binds addr and accepts dispatch commands until Stop is
// called. Each accepted connection is served in its own goroutine.
func (w *Worker) ListenAndServe(addr string) error {
	if _, err := w.Listen(addr); err != nil {
		return err
	}
	return w.Serve()
}

// Serve accepts dispatch commands on a listener previously bound with
// Listen, until Stop is called.
func (w *Worker) Serve() error {
	ln := w.listener
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-w.stopped:
				w.wg.Wait()
				return nil
			default:
				return fmt.Errorf("fetcher %s: accept: %w", w.nodeID, err)
			}
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.handleConn(conn)
		}()
	}
}

// Stop closes the listener so Accept unblocks. It does not wait itself:
// Serve waits for in-flight handlers to finish before it returns.
func (w *Worker) Stop() {
	w.once.Do(func() {
		close(w.stopped)
		if w.listener != nil {
			_ = w.listener.Close()
		}
	})
}

// resolveBatch applies the sticky-payload rule from SPEC_FULL.md §4.4: a
// non-empty Tokens list replaces the sticky batch; an empty one reuses it.
// Returns ok=false when there is nothing to reuse yet.
func (w *Worker) resolveBatch(tokens []string) (batch []string, ok bool) {
	w.stickyMu.Lock()
	defer w.stickyMu.Unlock()
	if len(tokens) > 0 {
		w.sticky = append([]string(nil), tokens...)
	} else if len(w.sticky) == 0 {
		return nil, false
	}
	return append([]string(nil), w.sticky...), true
}

func (w *Worker) handleConn(conn net.Conn) {
	defer conn.Close()
	start := time.Now()

	if w.commandTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(w.commandTimeout))
	}

	var cmd fleet.Command
	if err := transport.ReadCommand(conn, &cmd); err != nil {
		if errors.Is(err, io.EOF) {
			// Clean EOF before any bytes: a liveness probe, not an error.
			return
		}
		log.Printf("fetcher %s: malformed command: %v", w.nodeID, err)
		return
	}

	batch, ok := w.resolveBatch(cmd.Tokens)
	if !ok {
		log.Printf("fetcher %s: command with no tokens and no sticky batch yet; failing", w.nodeID)
		return
	}

	select {
	case w.sem <- struct{}{}:
		defer func() { <-w.sem }()
	case <-w.stopped:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.fetchTimeout)
	defer cancel()

	books, err := w.market.PostBooks(ctx, batch)
	if err != nil {
		log.Printf("fetcher %s: POST /books failed for %d tokens: %v", w.nodeID, len(batch), err)
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		_ = transport.WriteOK(conn)
		return
	}
	metrics.FetchesTotal.WithLabelValues("ok").Inc()

	nowMS := time.Now().UnixMilli()
	for _, ob := range books {
		metrics.SnapshotsIngestedTotal.Inc()
		result, err := w.store.CASUpsert(ctx, ob, nowMS)
		if err != nil {
			log.Printf("fetcher %s: cas_upsert %s: %v", w.nodeID, ob.AssetID, err)
			continue
		}
		metrics.CASResultTotal.WithLabelValues(string(result)).Inc()

		if result != store.Updated {
			continue
		}
		if err := w.store.Publish(ctx, store.UpdatesChannel, ob); err != nil {
			log.Printf("fetcher %s: publish %s: %v", w.nodeID, ob.AssetID, err)
		} else {
			metrics.PublishesTotal.Inc()
		}
		if w.audit != nil {
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.audit.Record(context.Background(), ob)
			}()
		}
	}

	metrics.CommandLatency.Observe(time.Since(start).Seconds())
	if err := transport.WriteOK(conn); err != nil {
		log.Printf("fetcher %s: write OK: %v", w.nodeID, err)
	}
}

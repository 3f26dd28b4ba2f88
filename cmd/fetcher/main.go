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

// Package main provides the entry point for a Fetcher node: it accepts
// framed dispatch commands, fetches order books from the remote market,
// and conditionally upserts them into the sharded state store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"obmirror/internal/fleet/audit"
	"obmirror/internal/fleet/config"
	"obmirror/internal/fleet/fetcher"
	"obmirror/internal/fleet/market"
	"obmirror/internal/fleet/metrics"
	"obmirror/internal/fleet/store"
)

func main() {
	configPath := flag.String("config", "fetcher.toml", "path to the fetcher's TOML configuration")
	flag.Parse()

	cfg, err := config.LoadFetcher(*configPath)
	if err != nil {
		log.Fatalf("fetcher %s: load config: %v", cfg.NodeID, err)
	}

	metrics.Serve(cfg.MetricsAddr)

	ring, err := store.NewRingEvaler(cfg.Shards())
	if err != nil {
		log.Fatalf("fetcher %s: connect to state store: %v", cfg.NodeID, err)
	}
	defer ring.Close()
	st := store.New(ring)

	mkt := market.New(cfg.BaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, err := audit.Build(ctx, cfg.Audit)
	if err != nil {
		log.Fatalf("fetcher %s: build audit sink: %v", cfg.NodeID, err)
	}

	w := fetcher.New(cfg.NodeID, mkt, st, sink, cfg.CapacityRPS, cfg.CommandTimeout)

	addr, err := w.Listen(cfg.BindAddr)
	if err != nil {
		log.Fatalf("fetcher %s: %v", cfg.NodeID, err)
	}
	log.Printf("fetcher %s: listening on %s, capacity_rps=%d", cfg.NodeID, addr, cfg.CapacityRPS)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Printf("fetcher %s: shutting down", cfg.NodeID)
		cancel()
		w.Stop()
	}()

	if err := w.Serve(); err != nil {
		log.Fatalf("fetcher %s: serve: %v", cfg.NodeID, err)
	}
	log.Printf("fetcher %s: stopped", cfg.NodeID)
}

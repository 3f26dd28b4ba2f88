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

// Package main provides the entry point for the Benchmark Observer: it
// subscribes to the remote market's WebSocket feed and logs how far the
// fleet's REST-mirrored record trails it.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"obmirror/internal/fleet/bench"
	"obmirror/internal/fleet/store"
)

func main() {
	wsURL := flag.String("ws_url", "", "remote market WebSocket feed URL")
	redisAddr := flag.String("redis_addr", "127.0.0.1:6379", "Redis shard holding mirrored records")
	flag.Parse()

	if *wsURL == "" {
		log.Fatal("bench-observer: -ws_url is required")
	}

	ring, err := store.NewRingEvaler([]string{*redisAddr})
	if err != nil {
		log.Fatalf("bench-observer: connect to state store: %v", err)
	}
	defer ring.Close()
	st := store.New(ring)

	obs := bench.New(*wsURL, func(ctx context.Context, assetID string) (string, bool) {
		ts, ok, err := st.Timestamp(ctx, assetID)
		if err != nil {
			log.Printf("bench-observer: lookup %s: %v", assetID, err)
			return "", false
		}
		return ts, ok
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("bench-observer: shutting down")
		cancel()
	}()

	for {
		if err := obs.Run(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("bench-observer: connection dropped: %v, reconnecting in 2s", err)
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		break
	}
	log.Println("bench-observer: stopped")
}

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

// Package main provides the entry point for the Viewer: it rebroadcasts
// the state store's update channel to browser clients over Server-Sent
// Events.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"obmirror/internal/fleet/printer"
	"obmirror/internal/fleet/store"
	"obmirror/internal/fleet/viewer"
)

func main() {
	redisAddr := flag.String("redis_addr", "127.0.0.1:6379", "Redis shard carrying ob_updates")
	httpAddr := flag.String("http_addr", ":8090", "HTTP listen address for the SSE endpoint")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := printer.NewRedisSource(ctx, *redisAddr, store.UpdatesChannel)
	if err != nil {
		log.Fatalf("viewer: subscribe to %s: %v", *redisAddr, err)
	}
	defer src.Close()

	hub := viewer.NewHub()
	go func() {
		if err := hub.Run(ctx, src); err != nil {
			log.Printf("viewer: hub stopped: %v", err)
		}
	}()

	srv := viewer.NewServer(hub)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("viewer: shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("viewer: serving /events on %s", *httpAddr)
	if err := srv.ListenAndServe(*httpAddr); err != nil {
		log.Fatalf("viewer: %v", err)
	}
	log.Println("viewer: stopped")
}

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

// Package main provides the entry point for the Printer: it tails the
// state store's update channel and logs each snapshot to stdout, with an
// optional JSONL tee for replay.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"obmirror/internal/fleet/printer"
	"obmirror/internal/fleet/store"
)

func main() {
	redisAddr := flag.String("redis_addr", "127.0.0.1:6379", "Redis shard carrying ob_updates")
	teePath := flag.String("tee", "", "if non-empty, append raw JSON lines to this file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := printer.NewRedisSource(ctx, *redisAddr, store.UpdatesChannel)
	if err != nil {
		log.Fatalf("printer: subscribe to %s: %v", *redisAddr, err)
	}
	defer src.Close()

	p := printer.New(src, os.Stdout)
	if *teePath != "" {
		if err := p.WithTee(*teePath); err != nil {
			log.Fatalf("printer: open tee file %s: %v", *teePath, err)
		}
	}
	defer p.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("printer: shutting down")
		cancel()
	}()

	if err := p.Run(ctx); err != nil {
		log.Fatalf("printer: %v", err)
	}
	log.Println("printer: stopped")
}

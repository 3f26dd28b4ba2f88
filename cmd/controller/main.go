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

// Package main provides the entry point for the Controller process: it
// loads the fleet's TOML configuration, starts the dispatch Scheduler and
// the advisory Health Prober, and exposes Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"obmirror/internal/fleet/config"
	"obmirror/internal/fleet/metrics"
	"obmirror/internal/fleet/prober"
	"obmirror/internal/fleet/scheduler"
)

func main() {
	configPath := flag.String("config", "controller.toml", "path to the controller's TOML configuration")
	flag.Parse()

	cfg, err := config.LoadController(*configPath)
	if err != nil {
		log.Fatalf("controller: load config: %v", err)
	}

	metrics.Serve(cfg.MetricsAddr)

	sched, err := scheduler.New(cfg.Tokens, cfg.FetchNodes)
	if err != nil {
		log.Fatalf("controller: %v", err)
	}

	probeTargets := make(map[string]string, len(cfg.FetchNodes))
	for i, addr := range cfg.FetchNodes {
		probeTargets[fmt.Sprintf("node-%d", i)] = addr
	}
	hp := prober.New(probeTargets)
	hp.Start()
	defer hp.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		log.Println("controller: shutting down")
		cancel()
	}()

	log.Printf("controller: dispatching to %d fetchers over %d tokens", len(cfg.FetchNodes), len(cfg.Tokens))
	sched.Run(ctx)
	log.Println("controller: stopped")
}

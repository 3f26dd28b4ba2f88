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

// Package metrics exposes the fleet's Prometheus instrumentation. It is
// safe to call from any goroutine and is a no-op exporter until Serve is
// called with a non-empty address.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "obmirror_fetches_total",
		Help: "Total POST /books calls performed by a fetcher, labeled by outcome.",
	}, []string{"outcome"})

	SnapshotsIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "obmirror_snapshots_ingested_total",
		Help: "Total snapshots returned by the remote API and run through CASUpsert.",
	})

	CASResultTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "obmirror_cas_result_total",
		Help: "CASUpsert outcomes, labeled updated|skip_hash|skip_ts.",
	}, []string{"result"})

	PublishesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "obmirror_publishes_total",
		Help: "Total publishes to the ob_updates channel.",
	})

	CommandsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "obmirror_commands_sent_total",
		Help: "Dispatch commands sent by the controller, labeled by outcome.",
	}, []string{"outcome"})

	CommandLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "obmirror_fetch_command_latency_seconds",
		Help:    "Latency of a fetcher's end-to-end command handling (read, fetch, cas, publish, reply).",
		Buckets: prometheus.DefBuckets,
	})

	FetcherAlive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "obmirror_fetcher_alive",
		Help: "1 if the health prober's last probe of this fetcher succeeded, 0 otherwise.",
	}, []string{"node"})
)

func init() {
	prometheus.MustRegister(
		FetchesTotal,
		SnapshotsIngestedTotal,
		CASResultTotal,
		PublishesTotal,
		CommandsSentTotal,
		CommandLatency,
		FetcherAlive,
	)
}

// Serve exposes /metrics on addr in a background goroutine. A no-op when
// addr is empty, matching the "metrics disabled by default" posture of
// SPEC_FULL.md §6.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}

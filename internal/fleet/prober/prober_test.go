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

package prober

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"obmirror/internal/fleet/metrics"
)

func TestProbe_DialSuccessIsAlive(t *testing.T) {
	p := New(map[string]string{"node-0": "127.0.0.1:1"})
	p.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return &fakeConn{}, nil
	}
	if !p.probe("127.0.0.1:1") {
		t.Fatal("expected probe to succeed when dial succeeds")
	}
}

func TestProbe_DialFailureIsDead(t *testing.T) {
	p := New(map[string]string{"node-0": "127.0.0.1:1"})
	p.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	if p.probe("127.0.0.1:1") {
		t.Fatal("expected probe to fail when dial errors")
	}
}

func TestRunOnce_UpdatesAliveGaugePerNode(t *testing.T) {
	var mu sync.Mutex
	results := map[string]bool{"up": true, "down": false}

	p := New(map[string]string{"up": "a:1", "down": "b:1"})
	p.interval = time.Hour
	p.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		for node, addrWant := range p.fetchers {
			if addrWant == addr && !results[node] {
				return nil, errors.New("down")
			}
		}
		return &fakeConn{}, nil
	}

	p.runOnce()

	if got := testutilGaugeValue(t, "up"); got != 1 {
		t.Fatalf("expected up node gauge = 1, got %v", got)
	}
	if got := testutilGaugeValue(t, "down"); got != 0 {
		t.Fatalf("expected down node gauge = 0, got %v", got)
	}
}

func testutilGaugeValue(t *testing.T, label string) float64 {
	t.Helper()
	g, err := metrics.FetcherAlive.GetMetricWithLabelValues(label)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

type fakeConn struct{ net.Conn }

func (fakeConn) Close() error { return nil }

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

package printer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSource replays a fixed list of payloads regardless of ctx state,
// then blocks on ctx cancellation once exhausted. Because delivery never
// waits on ctx until the queue is empty, a test can cancel immediately
// after starting Run and still observe every queued payload handled
// before Run returns.
type fakeSource struct {
	payloads []string
	i        int
}

func newFakeSource(payloads []string) *fakeSource {
	return &fakeSource{payloads: payloads}
}

func (f *fakeSource) Next(ctx context.Context) (string, error) {
	if f.i < len(f.payloads) {
		p := f.payloads[f.i]
		f.i++
		return p, nil
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRun_PrintsDecodedSnapshots(t *testing.T) {
	src := newFakeSource([]string{
		`{"asset_id":"A","hash":"h1","timestamp":"1000","bids":[["0.5","10"]],"asks":[]}`,
	})
	var buf bytes.Buffer
	p := New(src, &buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	cancel()
	<-done

	out := buf.String()
	if !strings.Contains(out, "A") || !strings.Contains(out, "h1") {
		t.Fatalf("expected printed output to mention asset and hash, got %q", out)
	}
}

func TestWithTee_WritesRawLinesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	src := newFakeSource([]string{`{"asset_id":"A","hash":"h1"}`})
	var buf bytes.Buffer
	p := New(src, &buf)
	if err := p.WithTee(path); err != nil {
		t.Fatalf("WithTee: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read tee file: %v", err)
	}
	if !strings.Contains(string(b), `"asset_id":"A"`) {
		t.Fatalf("tee file missing expected content, got %q", string(b))
	}
}

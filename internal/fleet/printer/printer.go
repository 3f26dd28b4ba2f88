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

// Package printer implements a minimal operator tool: it tails the state
// store's update channel and prints each snapshot to stdout, optionally
// teeing every message to a JSONL file for later replay.
package printer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"obmirror/internal/fleet"
)

// Source yields the next published message payload, blocking until one
// arrives or ctx is cancelled.
type Source interface {
	Next(ctx context.Context) (payload string, err error)
}

// Printer tails a Source and writes each decoded snapshot to out, tee-ing
// the raw JSON line to an optional file sink.
type Printer struct {
	source Source
	out    io.Writer
	tee    *fileTee
}

// New builds a Printer writing human-readable lines to out. Call WithTee
// to additionally persist raw JSON lines.
func New(source Source, out io.Writer) *Printer {
	return &Printer{source: source, out: out}
}

// WithTee attaches a JSONL tee file at path. The buffer is flushed when a
// line is appended more than 100ms after the previous flush, and on Close;
// there is no timer, so lines appended since the last flush stay buffered
// until the next append or Close.
func (p *Printer) WithTee(path string) error {
	tee, err := newFileTee(path)
	if err != nil {
		return err
	}
	p.tee = tee
	return nil
}

// Close flushes and releases the tee file, if any.
func (p *Printer) Close() error {
	if p.tee == nil {
		return nil
	}
	return p.tee.Close()
}

// Run tails the source until ctx is cancelled or the source returns a
// non-cancellation error.
func (p *Printer) Run(ctx context.Context) error {
	for {
		payload, err := p.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.handle(payload)
	}
}

func (p *Printer) handle(payload string) {
	if p.tee != nil {
		p.tee.append(payload)
	}

	var ob fleet.Snapshot
	if err := json.Unmarshal([]byte(payload), &ob); err != nil {
		log.Printf("printer: malformed snapshot payload: %v", err)
		return
	}
	fmt.Fprintf(p.out, "[%s] %s hash=%s ts=%s bids=%d asks=%d\n",
		time.Now().Format(time.RFC3339), ob.AssetID, ob.Hash, ob.Timestamp, len(ob.Bids), len(ob.Asks))
}

// fileTee buffers raw JSON lines to disk, flushing periodically.
type fileTee struct {
	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	lastFlush time.Time
}

func newFileTee(path string) (*fileTee, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileTee{f: f, w: bufio.NewWriterSize(f, 1<<16), lastFlush: time.Now()}, nil
}

func (t *fileTee) append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.w.WriteString(line)
	_, _ = t.w.WriteString("\n")
	if time.Since(t.lastFlush) > 100*time.Millisecond {
		_ = t.w.Flush()
		t.lastFlush = time.Now()
	}
}

func (t *fileTee) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.w.Flush()
	return t.f.Close()
}

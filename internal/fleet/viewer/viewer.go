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

// Package viewer implements a small HTTP server that rebroadcasts the
// state store's update channel to browser clients over Server-Sent
// Events, so a dashboard can watch book changes without touching Redis
// directly.
package viewer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Source yields the next published message payload, blocking until one
// arrives or ctx is cancelled. Shared with the printer package's
// subscription contract.
type Source interface {
	Next(ctx context.Context) (payload string, err error)
}

// Hub fans a single Source out to any number of connected SSE clients.
type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

// NewHub builds an empty Hub. Call Run to start pumping from source.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]struct{})}
}

// Run pulls from source until ctx is cancelled, broadcasting every
// payload to all currently-registered clients. A slow client is dropped
// rather than allowed to backpressure the rest of the fan-out.
func (h *Hub) Run(ctx context.Context, source Source) error {
	for {
		payload, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		h.broadcast(payload)
	}
}

func (h *Hub) broadcast(payload string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c <- payload:
		default:
			delete(h.clients, c)
			close(c)
		}
	}
}

func (h *Hub) register() chan string {
	c := make(chan string, 16)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// clientCount reports the number of currently registered clients. Used
// by tests to wait for a connection to register before broadcasting.
func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) unregister(c chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c)
	}
}

// Server exposes the Hub over HTTP.
type Server struct {
	hub        *Hub
	httpServer *http.Server
}

// NewServer builds a viewer Server backed by hub.
func NewServer(hub *Hub) *Server {
	return &Server{hub: hub}
}

// RegisterRoutes wires the SSE endpoint onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/events", s.handleEvents)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := s.hub.register()
	defer s.hub.unregister(c)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case payload, ok := <-c:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// ListenAndServe starts the viewer's HTTP server on addr, blocking until
// the server stops or Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // SSE connections stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server started by ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

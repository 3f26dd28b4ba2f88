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

// Package market wraps the remote market-data HTTP API: a single-book
// GET endpoint (reserved for the Benchmark Observer, see SPEC_FULL.md
// §9.3) and the batched POST /books endpoint the Fetcher pipeline uses.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"obmirror/internal/fleet"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// Client is a pooled HTTP client against one remote market-data base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client with the pooling and timeout profile from
// SPEC_FULL.md §4.6: 30s idle timeout, 30s keep-alive, 1200ms connect
// timeout, and content-encoding negotiation left to the transport.
// Go's http.Transport requests and transparently decodes gzip only;
// brotli and deflate are neither requested nor decoded.
func New(baseURL string) *Client {
	dialer := &net.Dialer{Timeout: 1200 * time.Millisecond, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		IdleConnTimeout:     30 * time.Second,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 256,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
}

// HTTPStatusError carries the response status and body for diagnostics,
// per SPEC_FULL.md §4.6's error-surfacing requirement.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("market: unexpected status %d: %s", e.Status, e.Body)
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+"/")
}

// GetBook fetches a single snapshot via GET /book?token_id={id}. Not
// exercised by the Fetcher's batched pipeline; reserved for the Benchmark
// Observer adapter (SPEC_FULL.md §9.3).
func (c *Client) GetBook(ctx context.Context, tokenID string) (fleet.Snapshot, error) {
	u := fmt.Sprintf("%s/book?token_id=%s", c.baseURL, url.QueryEscape(tokenID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fleet.Snapshot{}, fmt.Errorf("market: build GET /book request: %w", err)
	}
	c.setCommonHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fleet.Snapshot{}, fmt.Errorf("market: GET /book: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fleet.Snapshot{}, &HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var ob fleet.Snapshot
	if err := json.Unmarshal(body, &ob); err != nil {
		return fleet.Snapshot{}, fmt.Errorf("market: decode GET /book response: %w", err)
	}
	return ob, nil
}

// PostBooks issues POST /books with an unwrapped JSON array body of
// {token_id} objects, and returns the array of returned snapshots. This
// is the only remote call the Fetcher pipeline makes.
func (c *Client) PostBooks(ctx context.Context, tokens []string) ([]fleet.Snapshot, error) {
	reqBody, err := json.Marshal(fleet.BooksRequestBody(tokens))
	if err != nil {
		return nil, fmt.Errorf("market: marshal POST /books body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/books", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("market: build POST /books request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setCommonHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market: POST /books: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var books []fleet.Snapshot
	if err := json.Unmarshal(body, &books); err != nil {
		return nil, fmt.Errorf("market: decode POST /books response: %w", err)
	}
	return books, nil
}

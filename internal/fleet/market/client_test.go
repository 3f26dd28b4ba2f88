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

package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostBooks_SendsUnwrappedArrayAndHeaders(t *testing.T) {
	var gotBody []map[string]string
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"market":"M","asset_id":"A","hash":"h1","timestamp":"1000","bids":[["0.5","10"]],"asks":[["0.51","8"]]}]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	books, err := c.PostBooks(context.Background(), []string{"A", "B"})
	if err != nil {
		t.Fatalf("PostBooks: %v", err)
	}
	if len(books) != 1 || books[0].AssetID != "A" || books[0].Hash != "h1" {
		t.Fatalf("unexpected decoded snapshot: %+v", books)
	}
	if len(gotBody) != 2 || gotBody[0]["token_id"] != "A" || gotBody[1]["token_id"] != "B" {
		t.Fatalf("expected unwrapped array body with both tokens, got %+v", gotBody)
	}
	if gotHeaders.Get("User-Agent") != userAgent {
		t.Fatalf("expected browser-like User-Agent header")
	}
	if gotHeaders.Get("Origin") != srv.URL {
		t.Fatalf("expected Origin header to equal base URL")
	}
}

func TestPostBooks_NonSuccessStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.PostBooks(context.Background(), []string{"A"})
	if err == nil {
		t.Fatal("expected an error for a 5xx response")
	}
	statusErr, ok := err.(*HTTPStatusError)
	if !ok {
		t.Fatalf("expected *HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.Status != 500 || statusErr.Body != "boom" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestGetBook_DecodesSingleSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") != "A" {
			t.Errorf("expected token_id=A, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"market":"M","asset_id":"A","hash":"h1","timestamp":"1000"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ob, err := c.GetBook(context.Background(), "A")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if ob.AssetID != "A" || ob.Hash != "h1" {
		t.Fatalf("unexpected snapshot: %+v", ob)
	}
}

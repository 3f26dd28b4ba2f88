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

// Package fleet holds the shared data model for the order-book mirror
// fleet: the wire shape of a Snapshot as returned by the remote
// market-data API, and the Dispatch Command exchanged between the
// Controller and Fetcher processes over the command transport.
package fleet

// Level is one price/size pair in an order-book side.
type Level [2]string

// Snapshot is one order-book image for one asset, identified by
// (AssetID, Hash, Timestamp). It is the shape returned both by the remote
// REST endpoints and published on the ob_updates channel.
type Snapshot struct {
	Market    string  `json:"market"`
	AssetID   string  `json:"asset_id"`
	Hash      string  `json:"hash"`
	Timestamp string  `json:"timestamp"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`

	MinOrderSize string `json:"min_order_size,omitempty"`
	NegRisk      *bool  `json:"neg_risk,omitempty"`
	TickSize     string `json:"tick_size,omitempty"`
}

// Command is the Dispatch Command sent from Controller to Fetcher.
// An empty Tokens list means "reuse the sticky last batch".
type Command struct {
	Tokens  []string `json:"tokens"`
	Trigger bool     `json:"trigger"`
}

// tokenRequest is the shape POSTed to the remote /books endpoint.
type tokenRequest struct {
	TokenID string `json:"token_id"`
}

// BooksRequestBody builds the JSON array body for POST /books out of a
// token batch, passed through unchanged including any duplicates.
func BooksRequestBody(tokens []string) []tokenRequest {
	reqs := make([]tokenRequest, len(tokens))
	for i, t := range tokens {
		reqs[i] = tokenRequest{TokenID: t}
	}
	return reqs
}

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

package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"obmirror/internal/fleet"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS snapshot_audit (
//   commit_id  TEXT PRIMARY KEY,
//   asset_id   TEXT NOT NULL,
//   market     TEXT NOT NULL,
//   hash       TEXT NOT NULL,
//   timestamp  TEXT NOT NULL,
//   recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE INDEX IF NOT EXISTS idx_snapshot_audit_asset ON snapshot_audit(asset_id);

// PostgresSink writes accepted snapshots to a queryable audit table.
// CommitID is the primary key, so a re-delivered or replayed record is a
// no-op rather than a duplicate row.
type PostgresSink struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresSink connects to dsn using a pooled pgx connection.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresSink{pool: pool, timeout: 5 * time.Second}, nil
}

// Record inserts ob's audit entry, ignoring a duplicate commit id.
func (p *PostgresSink) Record(ctx context.Context, ob fleet.Snapshot) {
	_, entry, err := marshal(ob)
	if err != nil {
		logDropped("postgres", ob, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err = p.pool.Exec(ctx,
		`INSERT INTO snapshot_audit (commit_id, asset_id, market, hash, timestamp)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (commit_id) DO NOTHING`,
		entry.CommitID, entry.AssetID, entry.Market, entry.Hash, entry.Timestamp,
	)
	if err != nil {
		logDropped("postgres", ob, err)
	}
}

// Close releases pooled connections.
func (p *PostgresSink) Close() {
	p.pool.Close()
}

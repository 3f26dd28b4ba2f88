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

// Package config loads the immutable, process-lifetime TOML configuration
// for the Controller and Fetcher binaries.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// AuditConfig configures the optional best-effort audit fan-out. Every
// field is optional; a zero value disables that backend.
type AuditConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
	PostgresDSN  string   `toml:"postgres_dsn"`
}

// Controller is the Controller process's fleet configuration.
type Controller struct {
	RedisURL   string   `toml:"redis_url"`  // single-endpoint convenience alias
	RedisURLs  []string `toml:"redis_urls"` // sharded store endpoints
	BaseURL    string   `toml:"base_url"`
	Tokens     []string `toml:"tokens"`
	FetchNodes []string `toml:"fetch_nodes"`

	// PlanHorizonSecs is accepted for forward compatibility but unused by
	// this version's scheduler (see SPEC_FULL.md §9.2).
	PlanHorizonSecs int `toml:"plan_horizon_secs"`

	MetricsAddr string      `toml:"metrics_addr"`
	Audit       AuditConfig `toml:"audit"`
}

// Fetcher is the Fetcher process's fleet configuration.
type Fetcher struct {
	RedisURL  string   `toml:"redis_url"`
	RedisURLs []string `toml:"redis_urls"`
	BaseURL   string   `toml:"base_url"`
	NodeID    string   `toml:"node_id"`

	CapacityRPS    int64         `toml:"capacity_rps"`
	BindAddr       string        `toml:"bind_addr"`
	CommandTimeout time.Duration `toml:"command_timeout"`

	MetricsAddr string      `toml:"metrics_addr"`
	Audit       AuditConfig `toml:"audit"`
}

// shards merges the singular and plural Redis endpoint fields into one list.
func shards(single string, plural []string) []string {
	if len(plural) > 0 {
		return plural
	}
	if single != "" {
		return []string{single}
	}
	return nil
}

// Shards returns the resolved set of store endpoints for a Controller.
func (c Controller) Shards() []string { return shards(c.RedisURL, c.RedisURLs) }

// Shards returns the resolved set of store endpoints for a Fetcher.
func (f Fetcher) Shards() []string { return shards(f.RedisURL, f.RedisURLs) }

// LoadController decodes a Controller configuration from a TOML file at path.
func LoadController(path string) (Controller, error) {
	var c Controller
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Controller{}, fmt.Errorf("decode controller config %s: %w", path, err)
	}
	if len(c.Shards()) == 0 {
		return Controller{}, fmt.Errorf("controller config %s: redis_url or redis_urls is required", path)
	}
	if len(c.FetchNodes) == 0 {
		return Controller{}, fmt.Errorf("controller config %s: fetch_nodes must be non-empty", path)
	}
	if c.PlanHorizonSecs <= 0 {
		c.PlanHorizonSecs = 5
	}
	return c, nil
}

// LoadFetcher decodes a Fetcher configuration from a TOML file at path,
// applying the defaults named in SPEC_FULL.md §3.
func LoadFetcher(path string) (Fetcher, error) {
	var f Fetcher
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Fetcher{}, fmt.Errorf("decode fetcher config %s: %w", path, err)
	}
	if len(f.Shards()) == 0 {
		return Fetcher{}, fmt.Errorf("fetcher config %s: redis_url or redis_urls is required", path)
	}
	if f.NodeID == "" {
		return Fetcher{}, fmt.Errorf("fetcher config %s: node_id is required", path)
	}
	if f.CapacityRPS <= 0 {
		f.CapacityRPS = 20
	}
	if f.BindAddr == "" {
		f.BindAddr = "0.0.0.0:3000"
	}
	if f.CommandTimeout <= 0 {
		f.CommandTimeout = 2 * time.Second
	}
	return f, nil
}

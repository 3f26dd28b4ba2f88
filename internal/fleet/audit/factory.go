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

	"obmirror/internal/fleet/config"
)

// Build selects an audit Sink from cfg. Kafka is preferred over Postgres
// when both are configured, since the log-shaped sink imposes the least
// backpressure on the fetch path it rides alongside. An unconfigured
// audit section yields Noop.
func Build(ctx context.Context, cfg config.AuditConfig) (Sink, error) {
	switch {
	case len(cfg.KafkaBrokers) > 0:
		topic := cfg.KafkaTopic
		if topic == "" {
			topic = "obmirror-snapshots"
		}
		return NewKafkaSink(cfg.KafkaBrokers, topic)
	case cfg.PostgresDSN != "":
		return NewPostgresSink(ctx, cfg.PostgresDSN)
	default:
		return Noop{}, nil
	}
}

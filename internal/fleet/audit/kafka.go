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

	"github.com/twmb/franz-go/pkg/kgo"

	"obmirror/internal/fleet"
)

// KafkaSink publishes accepted snapshots to a Kafka topic using an
// idempotent producer. The commit id doubles as the record key so the
// broker's idempotence guarantee and a consumer's own dedup both key on
// the same (asset, hash) identity.
type KafkaSink struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
}

// NewKafkaSink dials the given brokers and configures an idempotent
// producer targeting topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{client: client, topic: topic, timeout: 5 * time.Second}, nil
}

// Record serializes ob and produces it synchronously. A produce failure is
// logged and swallowed: the audit trail is best-effort and must never
// block the fetch path it observes.
func (k *KafkaSink) Record(ctx context.Context, ob fleet.Snapshot) {
	body, entry, err := marshal(ob)
	if err != nil {
		logDropped("kafka", ob, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(entry.CommitID),
		Value: body,
	}
	res := k.client.ProduceSync(ctx, rec)
	if err := res.FirstErr(); err != nil {
		logDropped("kafka", ob, err)
	}
}

// Close releases the underlying client's connections.
func (k *KafkaSink) Close() {
	k.client.Close()
}

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
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSource subscribes to a single Redis channel via a single shard.
// The fleet's sharded store client routes PUBLISH by channel name, so
// every ob_updates message lands on the one shard that channel name maps
// to; a RedisSource sees the updates only when addr is that shard.
type RedisSource struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// NewRedisSource subscribes to channel on the Redis instance at addr.
func NewRedisSource(ctx context.Context, addr, channel string) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return &RedisSource{client: client, pubsub: pubsub}, nil
}

// Next blocks for the next published message.
func (s *RedisSource) Next(ctx context.Context) (string, error) {
	msg, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return "", err
	}
	return msg.Payload, nil
}

// Close releases the subscription and client connection.
func (s *RedisSource) Close() error {
	_ = s.pubsub.Close()
	return s.client.Close()
}

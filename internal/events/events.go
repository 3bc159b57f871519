// events.go
//
// Permit application document review and workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of permit-review.
// permit-review is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// permit-review is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with permit-review.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package events publishes structured change notifications for workflow
// entities so other processes can refresh without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Entities and operations carried by change events
const (
	EntityProject      = "project"
	EntityDocument     = "document"
	EntityStakeholder  = "stakeholder"
	EntityTask         = "task"
	EntityNotification = "notification"

	OpCreated  = "created"
	OpUpdated  = "updated"
	OpDeleted  = "deleted"
	OpReviewed = "reviewed"
)

// DefaultChannel is the channel every change is published on
const DefaultChannel = "permit-review:changes"

// Change describes one committed mutation
type Change struct {
	ID        string    `json:"id"`
	Entity    string    `json:"entity"`
	EntityID  uint64    `json:"entityId"`
	ProjectID uint64    `json:"projectId"`
	Op        string    `json:"op"`
	ActorID   string    `json:"actorId"`
	At        time.Time `json:"at"`
}

// Publisher delivers change events
type Publisher interface {
	Publish(ctx context.Context, change Change) error
	Close() error
}

// Nop drops every event
type Nop struct{}

// Publish does nothing
func (Nop) Publish(context.Context, Change) error { return nil }

// Close does nothing
func (Nop) Close() error { return nil }

// RedisPublisher publishes changes over Redis pub/sub, once on the global
// channel and once on the project channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to redisURL and verifies the connection
func NewRedisPublisher(redisURL, channel string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisPublisherWithClient(client, channel), nil
}

// NewRedisPublisherWithClient creates a publisher from an existing client
func NewRedisPublisherWithClient(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the global channel name
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// ProjectChannel returns the channel scoped to one project
func (p *RedisPublisher) ProjectChannel(projectID uint64) string {
	return fmt.Sprintf("%s:project:%d", p.channel, projectID)
}

// Publish stamps and sends the change
func (p *RedisPublisher) Publish(ctx context.Context, change Change) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	if change.ProjectID != 0 {
		if err := p.client.Publish(ctx, p.ProjectChannel(change.ProjectID), payload).Err(); err != nil {
			return fmt.Errorf("publish project change: %w", err)
		}
	}
	return nil
}

// Subscribe listens on the project channel, or the global channel when projectID is 0.
// The returned channel closes when ctx is done; call the close func to release the subscription.
func (p *RedisPublisher) Subscribe(ctx context.Context, projectID uint64) (<-chan Change, func() error, error) {
	channel := p.channel
	if projectID != 0 {
		channel = p.ProjectChannel(projectID)
	}

	sub := p.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, sub.Close, nil
}

// Ping checks the Redis connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

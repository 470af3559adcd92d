// Copyright 2026 Viva Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bus provides topic-based pub/sub for agent communication.
// Delivery is best-effort in-process: publish never blocks, per-publisher
// ordering is preserved to each subscriber, and slow subscribers shed the
// oldest non-critical messages instead of stalling publishers.
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/types"
)

// DefaultMailboxCap is the default per-subscriber mailbox capacity.
// Critical topics may grow past it; see types.CriticalTopic.
const DefaultMailboxCap = 64

// Message is the envelope delivered to subscribers.
type Message struct {
	ID        string
	Topic     string
	From      string
	Timestamp time.Time
	Event     types.Event
}

// Bus is a topic-indexed broadcast primitive.
// All operations are safe for concurrent use by multiple goroutines.
type Bus struct {
	mu sync.RWMutex

	// Subscription ID → subscription
	subscriptions map[string]*Subscription

	logger *zap.Logger

	// Metrics (atomic counters)
	totalPublished atomic.Int64
	totalDelivered atomic.Int64
	totalDropped   atomic.Int64

	closed atomic.Bool
}

// Subscription represents an active subscription across one or more topics.
// All matched messages funnel through a single mailbox so a subscriber sees
// one ordered stream.
type Subscription struct {
	ID      string
	AgentID string
	Topics  []string
	C       <-chan *Message
	Created time.Time

	topicSet map[string]struct{}
	mailbox  *mailbox
}

// Stats are cumulative bus counters.
type Stats struct {
	Published int64
	Delivered int64
	Dropped   int64
}

// New creates a message bus.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subscriptions: make(map[string]*Subscription),
		logger:        logger,
	}
}

// Subscribe registers agentID for delivery of messages on the given topics.
// The returned subscription's channel is closed on Unsubscribe or bus Close.
func (b *Bus) Subscribe(agentID string, topics ...string) (*Subscription, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("bus is closed")
	}
	if agentID == "" {
		return nil, fmt.Errorf("agent ID cannot be empty")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}

	topicSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		if t == "" {
			return nil, fmt.Errorf("topic cannot be empty")
		}
		topicSet[t] = struct{}{}
	}

	mb := newMailbox(DefaultMailboxCap)
	sub := &Subscription{
		ID:       fmt.Sprintf("%s-%s", agentID, uuid.NewString()),
		AgentID:  agentID,
		Topics:   topics,
		C:        mb.out,
		Created:  time.Now(),
		topicSet: topicSet,
		mailbox:  mb,
	}

	b.mu.Lock()
	b.subscriptions[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug("bus subscribe",
		zap.String("subscription_id", sub.ID),
		zap.String("agent_id", agentID),
		zap.Strings("topics", topics))

	return sub, nil
}

// Publish sends an event to every current subscriber of topic.
// Returns (delivered, dropped, error). Never blocks on slow subscribers.
func (b *Bus) Publish(topic, from string, ev types.Event) (int, int, error) {
	if b.closed.Load() {
		return 0, 0, fmt.Errorf("bus is closed")
	}
	if topic == "" {
		return 0, 0, fmt.Errorf("topic cannot be empty")
	}
	if ev == nil {
		return 0, 0, fmt.Errorf("event cannot be nil")
	}

	msg := &Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		From:      from,
		Timestamp: time.Now(),
		Event:     ev,
	}

	delivered := 0
	dropped := 0

	b.mu.RLock()
	for _, sub := range b.subscriptions {
		if _, ok := sub.topicSet[topic]; !ok {
			continue
		}
		ok, evicted := sub.mailbox.push(msg)
		if ok {
			delivered++
		}
		dropped += evicted
	}
	b.mu.RUnlock()

	b.totalPublished.Add(1)
	b.totalDelivered.Add(int64(delivered))
	b.totalDropped.Add(int64(dropped))

	b.logger.Debug("bus publish",
		zap.String("topic", topic),
		zap.String("from", from),
		zap.String("kind", ev.Kind()),
		zap.Int("delivered", delivered),
		zap.Int("dropped", dropped))

	return delivered, dropped, nil
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	sub, found := b.subscriptions[subscriptionID]
	if !found {
		b.mu.Unlock()
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(b.subscriptions, subscriptionID)
	b.mu.Unlock()

	sub.mailbox.close()

	b.logger.Debug("bus unsubscribe",
		zap.String("subscription_id", subscriptionID),
		zap.String("agent_id", sub.AgentID))

	return nil
}

// Stats returns cumulative counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.totalPublished.Load(),
		Delivered: b.totalDelivered.Load(),
		Dropped:   b.totalDropped.Load(),
	}
}

// Close shuts down the bus and closes all subscriber channels.
// Idempotent.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.subscriptions = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.mailbox.close()
	}

	b.logger.Info("bus closed",
		zap.Int64("total_published", b.totalPublished.Load()),
		zap.Int64("total_delivered", b.totalDelivered.Load()),
		zap.Int64("total_dropped", b.totalDropped.Load()))

	return nil
}

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

// Package interview owns the authoritative session state and the periodic
// ticker. All session mutations serialize through State; everything else
// observes the session via published events or snapshots.
package interview

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/types"
)

// State is the single-writer authoritative interview session.
// Safe for concurrent use; every mutation happens under one mutex.
type State struct {
	mu       sync.Mutex
	bus      *bus.Bus
	registry *content.Registry
	logger   *zap.Logger
	clock    func() time.Time
	ticker   *Ticker

	startedAt       time.Time
	status          types.Status
	currentTopic    content.TopicID
	responses       map[content.TopicID][]string
	scores          map[content.TopicID]int
	history         []types.HistoryEntry
	topicsCompleted int
	epoch           uint64
}

// StateOption customizes a State.
type StateOption func(*State)

// WithClock replaces the wall clock, for tests.
func WithClock(clock func() time.Time) StateOption {
	return func(s *State) { s.clock = clock }
}

// NewState creates a session in the not_started status.
func NewState(b *bus.Bus, registry *content.Registry, logger *zap.Logger, opts ...StateOption) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &State{
		bus:          b,
		registry:     registry,
		logger:       logger,
		clock:        time.Now,
		status:       types.StatusNotStarted,
		currentTopic: registry.First().ID,
		responses:    make(map[content.TopicID][]string),
		scores:       make(map[content.TopicID]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTicker attaches the ticker started on Start and stopped on
// Finish/Reset.
func (s *State) SetTicker(t *Ticker) {
	s.mu.Lock()
	s.ticker = t
	s.mu.Unlock()
}

// Start begins a fresh session and publishes interview_started.
func (s *State) Start() (types.Snapshot, error) {
	s.mu.Lock()
	if s.status == types.StatusInProgress {
		s.mu.Unlock()
		return types.Snapshot{}, fmt.Errorf("interview already in progress")
	}

	s.startedAt = s.clock()
	s.status = types.StatusInProgress
	s.currentTopic = s.registry.First().ID
	s.responses = make(map[content.TopicID][]string)
	s.scores = make(map[content.TopicID]int)
	s.history = nil
	s.topicsCompleted = 0
	s.epoch++

	snap := s.snapshotLocked()
	ticker := s.ticker
	s.mu.Unlock()

	s.logger.Info("interview started",
		zap.Time("started_at", snap.StartedAt.UTC()),
		zap.String("first_topic", string(snap.CurrentTopic)),
		zap.Uint64("epoch", snap.Epoch))

	s.publish(types.TopicEvents, types.InterviewStarted{Snapshot: snap})
	if ticker != nil {
		if err := ticker.Start(); err != nil {
			s.logger.Error("failed to start ticker", zap.Error(err))
		}
	}
	return snap, nil
}

// RecordResponse appends a student utterance on topic and publishes
// student_response.
func (s *State) RecordResponse(topic content.TopicID, text string) error {
	s.mu.Lock()
	if s.status != types.StatusInProgress {
		s.mu.Unlock()
		return fmt.Errorf("interview is not in progress")
	}
	if topic == "" {
		topic = s.currentTopic
	}
	if _, ok := s.registry.Get(topic); !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown topic: %s", topic)
	}

	now := s.clock()
	s.responses[topic] = append(s.responses[topic], text)
	s.history = append(s.history, types.HistoryEntry{
		Role:    types.RoleStudent,
		Topic:   topic,
		Content: text,
		TS:      now,
	})
	s.mu.Unlock()

	s.publish(types.TopicStudentResponse, types.StudentResponse{
		Topic: topic,
		Text:  text,
		TS:    now,
	})
	return nil
}

// AddToHistory records an interviewer or system utterance.
func (s *State) AddToHistory(role types.Role, text string) {
	s.mu.Lock()
	s.history = append(s.history, types.HistoryEntry{
		Role:    role,
		Topic:   s.currentTopic,
		Content: text,
		TS:      s.clock(),
	})
	s.mu.Unlock()
}

// CompleteTopic marks the current topic finished, advances to the next one,
// and publishes topic_completed. topic must be the current topic.
func (s *State) CompleteTopic(topic content.TopicID) error {
	s.mu.Lock()
	if s.status != types.StatusInProgress {
		s.mu.Unlock()
		return fmt.Errorf("interview is not in progress")
	}
	if topic != s.currentTopic {
		s.mu.Unlock()
		return fmt.Errorf("cannot complete %s: current topic is %s", topic, s.currentTopic)
	}

	s.topicsCompleted++
	var nextID content.TopicID
	if next, ok := s.registry.Next(topic); ok {
		s.currentTopic = next.ID
		nextID = next.ID
	}
	now := s.clock()
	completed := s.topicsCompleted
	s.mu.Unlock()

	s.logger.Info("topic completed",
		zap.String("topic", string(topic)),
		zap.String("next", string(nextID)),
		zap.Int("topics_completed", completed))

	s.publish(types.TopicTopicCompleted, types.TopicCompleted{
		Topic: types.TopicCompletedTopic{Completed: topic, Next: nextID},
		TS:    now,
	})
	return nil
}

// RecordScore stores a depth rating for a topic.
func (s *State) RecordScore(topic content.TopicID, rating int) error {
	if rating < 1 || rating > 3 {
		return fmt.Errorf("rating out of range: %d", rating)
	}
	s.mu.Lock()
	s.scores[topic] = rating
	s.mu.Unlock()
	return nil
}

// Finish marks the session completed and stops the ticker. Idempotent.
func (s *State) Finish() {
	s.mu.Lock()
	if s.status != types.StatusInProgress {
		s.mu.Unlock()
		return
	}
	s.status = types.StatusCompleted
	ticker := s.ticker
	s.mu.Unlock()

	s.logger.Info("interview completed")
	if ticker != nil {
		ticker.Stop()
	}
}

// Reset returns the session to not_started, stops the ticker, and publishes
// interview_reset. In-flight LLM tasks from the old session are discarded
// by the epoch bump.
func (s *State) Reset() {
	s.mu.Lock()
	s.status = types.StatusNotStarted
	s.startedAt = time.Time{}
	s.currentTopic = s.registry.First().ID
	s.responses = make(map[content.TopicID][]string)
	s.scores = make(map[content.TopicID]int)
	s.history = nil
	s.topicsCompleted = 0
	s.epoch++
	now := s.clock()
	ticker := s.ticker
	s.mu.Unlock()

	s.logger.Info("interview reset")
	if ticker != nil {
		ticker.Stop()
	}
	s.publish(types.TopicEvents, types.InterviewReset{TS: now})
}

// Snapshot returns a read-only copy of the session.
func (s *State) Snapshot() types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Epoch returns the current session epoch. Detached tasks capture it before
// starting and compare before publishing.
func (s *State) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// InProgress reports whether the session is running.
func (s *State) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == types.StatusInProgress
}

func (s *State) snapshotLocked() types.Snapshot {
	snap := types.Snapshot{
		Status:           s.status,
		CurrentTopic:     s.currentTopic,
		ResponsesByTopic: make(map[content.TopicID][]string, len(s.responses)),
		TopicScores:      make(map[content.TopicID]int, len(s.scores)),
		History:          make([]types.HistoryEntry, len(s.history)),
		TopicsCompleted:  s.topicsCompleted,
		Epoch:            s.epoch,
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		snap.StartedAt = &started
	}
	for topic, rs := range s.responses {
		snap.ResponsesByTopic[topic] = append([]string(nil), rs...)
	}
	for topic, score := range s.scores {
		snap.TopicScores[topic] = score
	}
	copy(snap.History, s.history)
	return snap
}

func (s *State) publish(topic string, ev types.Event) {
	if _, _, err := s.bus.Publish(topic, types.AgentState, ev); err != nil {
		s.logger.Warn("publish failed",
			zap.String("topic", topic),
			zap.String("kind", ev.Kind()),
			zap.Error(err))
	}
}

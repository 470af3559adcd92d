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

// Package coordinator implements the windowed synthesis engine: for every
// student response it collects agent observations for a fixed window, then
// emits exactly one directive, via LLM synthesis when available and a
// rule-based fallback otherwise.
package coordinator

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/interview"
	"github.com/viva-labs/viva/pkg/llm"
	"github.com/viva-labs/viva/pkg/types"
)

// DefaultWindow is the observation collection window per student response.
const DefaultWindow = 800 * time.Millisecond

// Coordinator serializes decisions. Everything else in the system is
// commutative; this is the only place order is imposed.
type Coordinator struct {
	bus      *bus.Bus
	registry *content.Registry
	state    *interview.State
	logger   *zap.Logger
	provider llm.Provider

	window      time.Duration
	temperature float64
	maxTokens   int

	// mu guards the window state below; it is touched by the handler
	// loop, the window timer, and detached synthesis tasks.
	mu           sync.Mutex
	collecting   bool
	windowID     uint64
	response     types.StudentResponse
	observations map[string]types.AgentObservation
	timer        *time.Timer
	ended        bool
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithWindow overrides the collection window length.
func WithWindow(d time.Duration) Option {
	return func(c *Coordinator) { c.window = d }
}

// New creates a Coordinator. provider may be nil, in which case every
// directive comes from the rule-based fallback.
func New(b *bus.Bus, registry *content.Registry, state *interview.State, provider llm.Provider, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		bus:          b,
		registry:     registry,
		state:        state,
		logger:       logger,
		provider:     provider,
		window:       DefaultWindow,
		temperature:  0.3,
		maxTokens:    200,
		observations: make(map[string]types.AgentObservation),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID implements agents.Agent.
func (c *Coordinator) ID() string { return types.AgentCoordinator }

// Topics implements agents.Agent.
func (c *Coordinator) Topics() []string {
	return []string{
		types.TopicStudentResponse,
		types.TopicAgentObservation,
		types.TopicEvents,
		types.TopicTopicCompleted,
	}
}

// Reset implements agents.Resetter.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.abandonWindowLocked()
	c.ended = false
	c.mu.Unlock()
}

// HandleEvent implements agents.Agent.
func (c *Coordinator) HandleEvent(msg *bus.Message) {
	switch ev := msg.Event.(type) {
	case types.StudentResponse:
		c.onResponse(ev)
	case types.AgentObservation:
		c.onObservation(ev)
	case types.InterviewStarted:
		c.Reset()
	case types.InterviewReset:
		c.Reset()
	}
}

// onResponse opens a collection window. A response arriving while a window
// is open replaces it (last-writer-wins); the earlier decision is abandoned.
func (c *Coordinator) onResponse(ev types.StudentResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended || !c.state.InProgress() {
		return
	}

	c.windowID++
	id := c.windowID
	c.collecting = true
	c.response = ev
	c.observations = make(map[string]types.AgentObservation)
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, func() { c.closeWindow(id) })

	c.logger.Debug("collection window opened",
		zap.Uint64("window_id", id),
		zap.String("topic", string(ev.Topic)))
}

// onObservation records the latest observation per agent while collecting.
func (c *Coordinator) onObservation(ev types.AgentObservation) {
	c.mu.Lock()
	if c.collecting {
		c.observations[ev.Agent] = ev
	}
	c.mu.Unlock()
}

// closeWindow fires when the window timer expires. Stale timers (from a
// replaced window) are ignored.
func (c *Coordinator) closeWindow(id uint64) {
	c.mu.Lock()
	if !c.collecting || id != c.windowID {
		c.mu.Unlock()
		return
	}
	c.collecting = false
	resp := c.response
	obs := make(map[string]types.AgentObservation, len(c.observations))
	for agent, o := range c.observations {
		obs[agent] = o
	}
	c.mu.Unlock()

	c.decide(id, resp, obs)
}

// decide produces the directive for a closed window. The fallback path is
// computed inline; LLM synthesis runs detached so a slow model never blocks
// the next window.
func (c *Coordinator) decide(id uint64, resp types.StudentResponse, obs map[string]types.AgentObservation) {
	timeObs, depthObs := extractObservations(obs)

	if c.provider == nil {
		kind, reasoning := fallbackDecision(timeObs, depthObs)
		c.apply(id, resp, obs, kind, reasoning, types.SourceFallback)
		return
	}

	go func() {
		kind, reasoning, err := c.llmDecision(resp, obs)
		source := types.SourceLLM
		if err != nil {
			c.logger.Warn("LLM synthesis failed, using rule-based fallback", zap.Error(err))
			kind, reasoning = fallbackDecision(timeObs, depthObs)
			source = types.SourceFallback
		}
		c.apply(id, resp, obs, kind, reasoning, source)
	}()
}

// apply publishes the directive for window id, unless the window has been
// replaced in the meantime.
func (c *Coordinator) apply(id uint64, resp types.StudentResponse, obs map[string]types.AgentObservation, kind types.DirectiveKind, reasoning string, source types.Source) {
	c.mu.Lock()
	if id != c.windowID || c.ended {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// The depth rating collected this window becomes the topic's score.
	if _, depthObs := extractObservations(obs); depthObs != nil {
		if err := c.state.RecordScore(depthObs.Topic, depthObs.Rating); err != nil {
			c.logger.Warn("failed to record depth score", zap.Error(err))
		}
	}

	topic := resp.Topic
	var nextTopic content.TopicID
	if kind == types.DirectiveTransition {
		next, ok := c.registry.Next(topic)
		if !ok {
			// The last topic still counts as covered; there is just
			// nothing to transition to.
			if err := c.state.CompleteTopic(topic); err != nil {
				c.logger.Warn("failed to complete final topic", zap.Error(err))
			}
			kind = types.DirectiveEndInterview
			reasoning = reasoning + " (no next topic, ending interview)"
		} else {
			nextTopic = next.ID
			// Downstream components must see the advance before the
			// directive lands.
			if err := c.state.CompleteTopic(topic); err != nil {
				c.logger.Error("topic advance rejected, ending interview",
					zap.String("topic", string(topic)), zap.Error(err))
				kind = types.DirectiveEndInterview
				nextTopic = ""
			}
		}
	}

	directive := types.CoordinatorDirective{
		Directive:            kind,
		Topic:                topic,
		NextTopic:            nextTopic,
		Reasoning:            reasoning,
		Source:               source,
		ObservationsReceived: agentIDs(obs),
		TS:                   time.Now(),
	}

	if _, _, err := c.bus.Publish(types.TopicCoordinatorDirective, c.ID(), directive); err != nil {
		c.logger.Error("failed to publish directive", zap.Error(err))
		return
	}

	c.logger.Info("directive emitted",
		zap.String("directive", string(kind)),
		zap.String("topic", string(topic)),
		zap.String("source", string(source)),
		zap.Strings("observations", directive.ObservationsReceived))

	if kind == types.DirectiveEndInterview {
		c.mu.Lock()
		c.ended = true
		c.abandonWindowLocked()
		c.mu.Unlock()
		c.state.Finish()
	}
}

func (c *Coordinator) abandonWindowLocked() {
	c.windowID++
	c.collecting = false
	c.observations = make(map[string]types.AgentObservation)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func extractObservations(obs map[string]types.AgentObservation) (*types.TimeObservation, *types.DepthObservation) {
	var timeObs *types.TimeObservation
	var depthObs *types.DepthObservation
	if o, ok := obs[types.AgentTimekeeper]; ok {
		if payload, ok := o.Payload.(types.TimeObservation); ok {
			timeObs = &payload
		}
	}
	if o, ok := obs[types.AgentDepthExpert]; ok {
		if payload, ok := o.Payload.(types.DepthObservation); ok {
			depthObs = &payload
		}
	}
	return timeObs, depthObs
}

func agentIDs(obs map[string]types.AgentObservation) []string {
	ids := make([]string, 0, len(obs))
	for agent := range obs {
		ids = append(ids, agent)
	}
	sort.Strings(ids)
	return ids
}

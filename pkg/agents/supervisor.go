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
package agents

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
)

// Default supervision parameters.
const (
	DefaultRestartBackoff = 200 * time.Millisecond
	DefaultMaxRuns        = 5
)

// Supervisor starts agents in registration order and restarts any whose
// handler crashes. A crash in one agent never propagates to its peers; the
// interview continues on fallbacks from the survivors.
type Supervisor struct {
	bus     *bus.Bus
	logger  *zap.Logger
	backoff time.Duration
	maxRuns int

	runners []*runner
	started bool
	stopped bool
}

// SupervisorOption customizes a Supervisor.
type SupervisorOption func(*Supervisor)

// WithRestartBackoff overrides the delay before a crashed agent restarts.
func WithRestartBackoff(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.backoff = d }
}

// WithMaxRuns overrides how many times an agent may run before the
// supervisor gives up on it.
func WithMaxRuns(n int) SupervisorOption {
	return func(s *Supervisor) { s.maxRuns = n }
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(b *bus.Bus, logger *zap.Logger, opts ...SupervisorOption) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Supervisor{
		bus:     b,
		logger:  logger,
		backoff: DefaultRestartBackoff,
		maxRuns: DefaultMaxRuns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers an agent. Agents start in Add order.
func (s *Supervisor) Add(a Agent) {
	s.runners = append(s.runners, newRunner(a, s.bus, s.logger, s.backoff, s.maxRuns))
}

// Start subscribes and launches every registered agent, in order.
func (s *Supervisor) Start() error {
	if s.started || s.stopped {
		return fmt.Errorf("supervisor can only be started once")
	}
	for _, r := range s.runners {
		if err := r.start(); err != nil {
			return err
		}
		s.logger.Info("agent started", zap.String("agent", r.agent.ID()))
	}
	s.started = true
	return nil
}

// Stop halts every agent, in reverse start order.
func (s *Supervisor) Stop() {
	if !s.started {
		return
	}
	for i := len(s.runners) - 1; i >= 0; i-- {
		s.runners[i].halt()
	}
	s.started = false
	s.stopped = true
	s.logger.Info("all agents stopped")
}

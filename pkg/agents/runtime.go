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

// Package agents contains the interview's long-lived workers: the actor
// runtime and supervisor, and the Timekeeper, Grader, DepthExpert, and
// Interviewer agents. Each agent owns private state and communicates only
// via the bus; its handler runs serialized on a dedicated goroutine.
package agents

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
)

// Agent is a long-lived worker driven by bus messages.
// HandleEvent is called serially from a single goroutine.
type Agent interface {
	ID() string
	Topics() []string
	HandleEvent(msg *bus.Message)
}

// Resetter is implemented by agents that can be restarted with fresh state
// after a crash.
type Resetter interface {
	Reset()
}

// runner drives one agent: subscribe, drain, recover, restart.
type runner struct {
	agent   Agent
	bus     *bus.Bus
	logger  *zap.Logger
	backoff time.Duration
	maxRuns int

	stop chan struct{}
	done chan struct{}

	mu  sync.Mutex
	sub *bus.Subscription
}

func newRunner(a Agent, b *bus.Bus, logger *zap.Logger, backoff time.Duration, maxRuns int) *runner {
	return &runner{
		agent:   a,
		bus:     b,
		logger:  logger.With(zap.String("agent", a.ID())),
		backoff: backoff,
		maxRuns: maxRuns,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start subscribes the agent and launches its loop.
func (r *runner) start() error {
	sub, err := r.bus.Subscribe(r.agent.ID(), r.agent.Topics()...)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", r.agent.ID(), err)
	}
	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()

	go r.loop()
	return nil
}

// loop drains the subscription, restarting the agent with fresh state and a
// fresh subscription when a handler panics.
func (r *runner) loop() {
	defer close(r.done)

	runs := 1
	for {
		crashed := r.drain()
		r.unsubscribe()
		if !crashed || r.stopped() {
			return
		}

		if runs >= r.maxRuns {
			r.logger.Error("agent crashed too many times, giving up",
				zap.Int("runs", runs))
			return
		}
		runs++

		select {
		case <-time.After(r.backoff):
		case <-r.stop:
			return
		}

		if res, ok := r.agent.(Resetter); ok {
			res.Reset()
		}
		sub, err := r.bus.Subscribe(r.agent.ID(), r.agent.Topics()...)
		if err != nil {
			r.logger.Error("failed to resubscribe after crash", zap.Error(err))
			return
		}
		r.mu.Lock()
		r.sub = sub
		r.mu.Unlock()
		r.logger.Warn("agent restarted", zap.Int("run", runs))
	}
}

// drain processes messages until the subscription closes or a handler
// panics. Returns true on panic.
func (r *runner) drain() bool {
	r.mu.Lock()
	sub := r.sub
	r.mu.Unlock()
	if sub == nil {
		return false
	}

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return false
			}
			if !r.dispatch(msg) {
				return true
			}
		case <-r.stop:
			return false
		}
	}
}

// dispatch runs one handler call, confining panics. Returns false on panic.
func (r *runner) dispatch(msg *bus.Message) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			r.logger.Error("agent handler panicked",
				zap.Any("panic", rec),
				zap.String("topic", msg.Topic),
				zap.String("kind", msg.Event.Kind()))
		}
	}()
	r.agent.HandleEvent(msg)
	return true
}

func (r *runner) unsubscribe() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub != nil {
		_ = r.bus.Unsubscribe(sub.ID)
	}
}

func (r *runner) halt() {
	close(r.stop)
	r.unsubscribe()
	<-r.done
}

func (r *runner) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

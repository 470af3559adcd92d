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
package interview

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/types"
)

// DefaultTickPeriod is how often a tick is published while an interview
// is in progress.
const DefaultTickPeriod = 10 * time.Second

// Ticker publishes interview:tick on a fixed cadence. Start and Stop are
// idempotent; the engine can be restarted after a stop.
type Ticker struct {
	mu      sync.Mutex
	engine  *cron.Cron
	entry   cron.EntryID
	running bool

	bus    *bus.Bus
	period time.Duration
	clock  func() time.Time
	gate   func() bool
	logger *zap.Logger
}

// TickerOption customizes a Ticker.
type TickerOption func(*Ticker)

// WithTickPeriod overrides the tick cadence.
func WithTickPeriod(period time.Duration) TickerOption {
	return func(t *Ticker) { t.period = period }
}

// WithTickClock replaces the wall clock, for tests.
func WithTickClock(clock func() time.Time) TickerOption {
	return func(t *Ticker) { t.clock = clock }
}

// WithTickGate suppresses ticks while gate returns false.
func WithTickGate(gate func() bool) TickerOption {
	return func(t *Ticker) { t.gate = gate }
}

// NewTicker creates a stopped ticker.
func NewTicker(b *bus.Bus, logger *zap.Logger, opts ...TickerOption) *Ticker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Ticker{
		engine: cron.New(),
		bus:    b,
		period: DefaultTickPeriod,
		clock:  time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins publishing ticks. Idempotent.
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	if t.entry == 0 {
		entry, err := t.engine.AddFunc(fmt.Sprintf("@every %s", t.period), t.tick)
		if err != nil {
			return fmt.Errorf("failed to schedule tick: %w", err)
		}
		t.entry = entry
	}

	t.engine.Start()
	t.running = true
	t.logger.Info("ticker started", zap.Duration("period", t.period))
	return nil
}

// Stop halts tick publication. Idempotent.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.engine.Stop()
	t.running = false
	t.logger.Info("ticker stopped")
}

// Running reports whether ticks are being published.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Ticker) tick() {
	if t.gate != nil && !t.gate() {
		return
	}
	ts := t.clock()
	if _, _, err := t.bus.Publish(types.TopicTick, types.AgentTicker, types.Tick{TS: ts}); err != nil {
		t.logger.Warn("tick publish failed", zap.Error(err))
	}
}

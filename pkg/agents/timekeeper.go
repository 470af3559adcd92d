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
	"time"

	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/types"
)

// Interview pacing constants.
const (
	DefaultTotalSeconds = 300.0
	DefaultTopicsTotal  = 5
)

// Timekeeper tracks elapsed and remaining time and publishes a pacing
// observation on every tick and every student response. Publishing on
// student_response guarantees the Coordinator sees fresh time data inside
// its collection window even when the last tick is stale.
type Timekeeper struct {
	bus    *bus.Bus
	logger *zap.Logger

	totalSeconds float64
	topicsTotal  int

	startedAt       time.Time
	active          bool
	topicsCompleted int
}

// TimekeeperOption customizes a Timekeeper.
type TimekeeperOption func(*Timekeeper)

// WithTimeBudget overrides the total interview duration in seconds.
func WithTimeBudget(seconds float64) TimekeeperOption {
	return func(tk *Timekeeper) { tk.totalSeconds = seconds }
}

// WithTopicsTotal overrides the number of topics in the interview.
func WithTopicsTotal(n int) TimekeeperOption {
	return func(tk *Timekeeper) { tk.topicsTotal = n }
}

// NewTimekeeper creates a Timekeeper with the standard interview budget.
func NewTimekeeper(b *bus.Bus, logger *zap.Logger, opts ...TimekeeperOption) *Timekeeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	tk := &Timekeeper{
		bus:          b,
		logger:       logger,
		totalSeconds: DefaultTotalSeconds,
		topicsTotal:  DefaultTopicsTotal,
	}
	for _, opt := range opts {
		opt(tk)
	}
	return tk
}

// ID implements Agent.
func (tk *Timekeeper) ID() string { return types.AgentTimekeeper }

// Topics implements Agent.
func (tk *Timekeeper) Topics() []string {
	return []string{
		types.TopicEvents,
		types.TopicTick,
		types.TopicTopicCompleted,
		types.TopicStudentResponse,
	}
}

// Reset implements Resetter. A restarted Timekeeper reconstructs its view
// from subsequent bus events.
func (tk *Timekeeper) Reset() {
	tk.startedAt = time.Time{}
	tk.active = false
	tk.topicsCompleted = 0
}

// HandleEvent implements Agent.
func (tk *Timekeeper) HandleEvent(msg *bus.Message) {
	switch ev := msg.Event.(type) {
	case types.InterviewStarted:
		if ev.Snapshot.StartedAt != nil {
			tk.startedAt = *ev.Snapshot.StartedAt
		}
		tk.topicsCompleted = ev.Snapshot.TopicsCompleted
		tk.active = true
	case types.InterviewReset:
		tk.Reset()
	case types.TopicCompleted:
		tk.topicsCompleted++
	case types.Tick:
		tk.observe(ev.TS)
	case types.StudentResponse:
		tk.observe(ev.TS)
	}
}

func (tk *Timekeeper) observe(ts time.Time) {
	if !tk.active {
		return
	}

	elapsed := ts.Sub(tk.startedAt).Seconds()
	remaining := tk.totalSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}

	topicsLeft := tk.topicsTotal - tk.topicsCompleted
	if topicsLeft < 0 {
		topicsLeft = 0
	}

	pace := 0.0
	if topicsLeft > 0 {
		pace = remaining / float64(topicsLeft)
	}

	pressure := ComputePressure(remaining, topicsLeft, pace)

	obs := types.TimeObservation{
		ElapsedSeconds:   elapsed,
		RemainingSeconds: remaining,
		TopicsLeft:       topicsLeft,
		PaceSeconds:      pace,
		Pressure:         pressure,
		Recommendation:   paceRecommendation(pressure),
	}

	if _, _, err := tk.bus.Publish(types.TopicAgentObservation, tk.ID(), types.AgentObservation{
		Agent:   tk.ID(),
		TS:      ts,
		Payload: obs,
	}); err != nil {
		tk.logger.Warn("failed to publish time observation", zap.Error(err))
	}
}

// ComputePressure maps remaining time, topics left, and pace (seconds per
// remaining topic) to a categorical urgency level. Pure and total; the
// thresholds are exact.
func ComputePressure(remaining float64, topicsLeft int, pace float64) types.Pressure {
	switch {
	case topicsLeft == 0:
		return types.PressureLow
	case remaining <= 30:
		return types.PressureCritical
	case remaining <= 90:
		return types.PressureHigh
	case pace < 55:
		return types.PressureHigh
	case pace < 65:
		return types.PressureMedium
	default:
		return types.PressureLow
	}
}

func paceRecommendation(p types.Pressure) types.PaceRecommendation {
	switch p {
	case types.PressureCritical:
		return types.PaceWrapUp
	case types.PressureHigh:
		return types.PaceAccelerate
	default:
		return types.PaceOnPace
	}
}

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
	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/types"
)

// Grader aggregates depth ratings per topic into a running letter grade.
// Each topic holds at most one score: the most recent DepthExpert rating.
type Grader struct {
	bus      *bus.Bus
	registry *content.Registry
	logger   *zap.Logger

	scores map[content.TopicID]int
}

// NewGrader creates a Grader with no scores.
func NewGrader(b *bus.Bus, registry *content.Registry, logger *zap.Logger) *Grader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grader{
		bus:      b,
		registry: registry,
		logger:   logger,
		scores:   make(map[content.TopicID]int),
	}
}

// ID implements Agent.
func (g *Grader) ID() string { return types.AgentGrader }

// Topics implements Agent.
func (g *Grader) Topics() []string {
	return []string{
		types.TopicAgentObservation,
		types.TopicTopicCompleted,
		types.TopicEvents,
	}
}

// Reset implements Resetter.
func (g *Grader) Reset() {
	g.scores = make(map[content.TopicID]int)
}

// HandleEvent implements Agent.
func (g *Grader) HandleEvent(msg *bus.Message) {
	switch ev := msg.Event.(type) {
	case types.AgentObservation:
		depth, ok := ev.Payload.(types.DepthObservation)
		if !ok || ev.Agent != types.AgentDepthExpert {
			return
		}
		g.scores[depth.Topic] = depth.Rating
		g.publishGrade(msg)
	case types.TopicCompleted:
		g.publishGrade(msg)
	case types.InterviewStarted:
		g.Reset()
	case types.InterviewReset:
		g.Reset()
	}
}

func (g *Grader) publishGrade(msg *bus.Message) {
	sum := 0
	for _, score := range g.scores {
		sum += score
	}

	avg := 0.0
	grade := "N/A"
	if len(g.scores) > 0 {
		avg = float64(sum) / float64(len(g.scores))
		grade = LetterGrade(avg)
	}

	var gaps []content.TopicID
	for _, topic := range g.registry.All() {
		if _, scored := g.scores[topic.ID]; !scored {
			gaps = append(gaps, topic.ID)
		}
	}

	obs := types.GradeObservation{
		RunningGrade:   grade,
		NumericAverage: avg,
		TopicsScored:   len(g.scores),
		CoverageGaps:   gaps,
	}

	if _, _, err := g.bus.Publish(types.TopicAgentObservation, g.ID(), types.AgentObservation{
		Agent:   g.ID(),
		TS:      msg.Timestamp,
		Payload: obs,
	}); err != nil {
		g.logger.Warn("failed to publish grade observation", zap.Error(err))
	}
}

// LetterGrade maps a mean depth score to a letter grade.
// Thresholds are closed on the lower bound.
func LetterGrade(avg float64) string {
	switch {
	case avg >= 2.7:
		return "A"
	case avg >= 2.3:
		return "B+"
	case avg >= 2.0:
		return "B"
	case avg >= 1.7:
		return "C+"
	case avg >= 1.3:
		return "C"
	case avg >= 1.0:
		return "D"
	default:
		return "F"
	}
}

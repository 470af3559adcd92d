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
	"context"
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/llm"
	"github.com/viva-labs/viva/pkg/types"
)

// LLM call parameters shared by the LLM-backed agents.
const (
	DefaultLLMTemperature = 0.3
	DefaultLLMMaxTokens   = 200
	llmCallTimeout        = 20 * time.Second
)

// EpochFunc returns the current session epoch. Detached tasks capture the
// epoch before starting and discard their result if it changed.
type EpochFunc func() uint64

// depthEvalSchema validates the DepthExpert's LLM output.
var depthEvalSchema = gojsonschema.NewStringLoader(heredoc.Doc(`
	{
		"type": "object",
		"required": ["rating", "recommendation"],
		"properties": {
			"rating": {"type": "integer", "minimum": 1, "maximum": 3},
			"recommendation": {"type": "string", "enum": ["probe", "accept", "move_on"]},
			"note": {"type": "string"},
			"frustration_detected": {"type": "boolean"}
		}
	}`))

// DepthExpert evaluates each student response against the question actually
// asked and the topic's depth criteria, via the LLM. Evaluation runs in a
// detached task so the handler loop stays responsive; any failure yields a
// conservative default observation, never silence.
type DepthExpert struct {
	bus      *bus.Bus
	registry *content.Registry
	logger   *zap.Logger
	provider llm.Provider
	epoch    EpochFunc

	temperature float64
	maxTokens   int

	lastQuestion      string
	lastQuestionTopic content.TopicID
}

// NewDepthExpert creates a DepthExpert. provider may be nil, in which case
// every evaluation is the conservative default.
func NewDepthExpert(b *bus.Bus, registry *content.Registry, provider llm.Provider, epoch EpochFunc, logger *zap.Logger) *DepthExpert {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepthExpert{
		bus:         b,
		registry:    registry,
		logger:      logger,
		provider:    provider,
		epoch:       epoch,
		temperature: DefaultLLMTemperature,
		maxTokens:   DefaultLLMMaxTokens,
	}
}

// ID implements Agent.
func (de *DepthExpert) ID() string { return types.AgentDepthExpert }

// Topics implements Agent.
func (de *DepthExpert) Topics() []string {
	return []string{
		types.TopicStudentResponse,
		types.TopicQuestionAsked,
		types.TopicEvents,
		types.TopicTopicCompleted,
	}
}

// Reset implements Resetter.
func (de *DepthExpert) Reset() {
	de.lastQuestion = ""
	de.lastQuestionTopic = ""
}

// HandleEvent implements Agent.
func (de *DepthExpert) HandleEvent(msg *bus.Message) {
	switch ev := msg.Event.(type) {
	case types.QuestionAsked:
		de.lastQuestion = ev.Question
		de.lastQuestionTopic = ev.Topic
	case types.InterviewStarted:
		de.Reset()
	case types.InterviewReset:
		de.Reset()
	case types.StudentResponse:
		de.onResponse(ev)
	}
}

func (de *DepthExpert) onResponse(ev types.StudentResponse) {
	topic, ok := de.registry.Get(ev.Topic)
	if !ok {
		de.logger.Warn("response for unknown topic", zap.String("topic", string(ev.Topic)))
		return
	}

	// Cross-publisher ordering is not bus-guaranteed, so the question may
	// not have been seen yet; fall back to the topic starter.
	question := de.lastQuestion
	if question == "" || de.lastQuestionTopic != ev.Topic {
		question = topic.Starter
	}

	epoch := de.currentEpoch()
	go func() {
		obs := de.evaluate(topic, question, ev.Text)
		if de.currentEpoch() != epoch {
			de.logger.Debug("discarding stale depth evaluation",
				zap.String("topic", string(topic.ID)))
			return
		}
		if _, _, err := de.bus.Publish(types.TopicAgentObservation, de.ID(), types.AgentObservation{
			Agent:   de.ID(),
			TS:      time.Now(),
			Payload: obs,
		}); err != nil {
			de.logger.Warn("failed to publish depth observation", zap.Error(err))
		}
	}()
}

// evaluate runs the LLM evaluation, returning the conservative default on
// any failure.
func (de *DepthExpert) evaluate(topic content.Topic, question, response string) types.DepthObservation {
	fallback := types.DepthObservation{
		Topic:          topic.ID,
		Rating:         2,
		Recommendation: types.DepthAccept,
		Note:           "Evaluation unavailable",
		Question:       question,
	}

	if de.provider == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(context.Background(), llmCallTimeout)
	defer cancel()

	out, err := de.provider.Complete(ctx, llm.Request{
		System:      depthSystemPrompt,
		User:        de.userPrompt(topic, question, response),
		Temperature: de.temperature,
		MaxTokens:   de.maxTokens,
	})
	if err != nil {
		de.logger.Warn("depth evaluation call failed", zap.Error(err))
		return fallback
	}

	parsed, err := parseDepthEval(out)
	if err != nil {
		de.logger.Warn("depth evaluation output rejected", zap.Error(err))
		return fallback
	}

	rec := types.DepthRecommendation(parsed.Recommendation)
	// Frustration upgrades probe to move_on, and only that transition.
	if parsed.FrustrationDetected && rec == types.DepthProbe {
		rec = types.DepthMoveOn
	}

	return types.DepthObservation{
		Topic:               topic.ID,
		Rating:              parsed.Rating,
		Recommendation:      rec,
		Note:                parsed.Note,
		FrustrationDetected: parsed.FrustrationDetected,
		Question:            question,
	}
}

const depthSystemPrompt = "You are an expert at judging the depth of a student's spoken answer in a book-report interview. Respond with strict JSON only."

func (de *DepthExpert) userPrompt(topic content.Topic, question, response string) string {
	book := de.registry.Book()
	return heredoc.Docf(`
		Book: %s by %s
		Topic: %s
		Question asked: %s
		Depth criteria: %s

		Student response:
		%s

		Rate the response depth and recommend the next move. Reply with JSON only:
		{"rating": 1-3, "recommendation": "probe|accept|move_on", "note": "<one sentence>", "frustration_detected": true|false}

		rating: 1 = surface level, 2 = some depth, 3 = meets the depth criteria.
		recommendation: "probe" to dig deeper, "accept" if good enough, "move_on" if more probing won't help.
		frustration_detected: true if the student sounds stuck, annoyed, or disengaged.`,
		book.Title, book.Author, topic.Name, question, topic.DepthCriteria, response)
}

type depthEval struct {
	Rating              int    `json:"rating"`
	Recommendation      string `json:"recommendation"`
	Note                string `json:"note"`
	FrustrationDetected bool   `json:"frustration_detected"`
}

// parseDepthEval strips fences, validates against the schema, and decodes.
func parseDepthEval(out string) (*depthEval, error) {
	cleaned := llm.StripFences(out)

	result, err := gojsonschema.Validate(depthEvalSchema, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("output does not match schema: %v", result.Errors())
	}

	var parsed depthEval
	if err := llm.ParseObject(cleaned, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (de *DepthExpert) currentEpoch() uint64 {
	if de.epoch == nil {
		return 0
	}
	return de.epoch()
}

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
	"strings"
	"sync"
	"time"

	"github.com/MakeNowJust/heredoc"
	"go.uber.org/zap"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/interview"
	"github.com/viva-labs/viva/pkg/llm"
	"github.com/viva-labs/viva/pkg/types"
)

// DefaultHistoryLimit is how many exchanges the Interviewer keeps for
// prompt context.
const DefaultHistoryLimit = 6

// Deterministic fallbacks. Every LLM-dependent question has one with the
// same shape, so the interview always moves forward.
const (
	probeFallback = "That's interesting! Can you tell me more about what made you think that?"
	endMessage    = "That's all the time we have. Thank you for sharing your thoughts about the book with me today!"
)

// Interviewer turns Coordinator directives into questions for the student.
// Starters are emitted verbatim; probes and transitions are LLM-generated
// with deterministic fallbacks; final questions and endings are templates.
type Interviewer struct {
	bus      *bus.Bus
	registry *content.Registry
	state    *interview.State
	logger   *zap.Logger
	provider llm.Provider

	temperature  float64
	maxTokens    int
	historyLimit int

	// historyMu guards history, which is also appended from detached
	// generation tasks.
	historyMu sync.Mutex
	history   []exchange
}

type exchange struct {
	role types.Role
	text string
}

// NewInterviewer creates an Interviewer. provider may be nil, in which case
// every generated question is the deterministic fallback.
func NewInterviewer(b *bus.Bus, registry *content.Registry, state *interview.State, provider llm.Provider, logger *zap.Logger) *Interviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interviewer{
		bus:          b,
		registry:     registry,
		state:        state,
		logger:       logger,
		provider:     provider,
		temperature:  DefaultLLMTemperature,
		maxTokens:    DefaultLLMMaxTokens,
		historyLimit: DefaultHistoryLimit,
	}
}

// ID implements Agent.
func (iv *Interviewer) ID() string { return types.AgentInterviewer }

// Topics implements Agent.
func (iv *Interviewer) Topics() []string {
	return []string{
		types.TopicCoordinatorDirective,
		types.TopicStudentResponse,
		types.TopicEvents,
	}
}

// Reset implements Resetter.
func (iv *Interviewer) Reset() {
	iv.historyMu.Lock()
	iv.history = nil
	iv.historyMu.Unlock()
}

// HandleEvent implements Agent.
func (iv *Interviewer) HandleEvent(msg *bus.Message) {
	switch ev := msg.Event.(type) {
	case types.CoordinatorDirective:
		iv.onDirective(ev)
	case types.StudentResponse:
		iv.remember(types.RoleStudent, ev.Text)
	case types.InterviewStarted:
		iv.Reset()
		if err := iv.AskStarter(ev.Snapshot.CurrentTopic); err != nil {
			iv.logger.Error("failed to ask first starter", zap.Error(err))
		}
	case types.InterviewReset:
		iv.Reset()
	}
}

// AskStarter emits the topic's predefined starter question verbatim.
func (iv *Interviewer) AskStarter(topicID content.TopicID) error {
	topic, ok := iv.registry.Get(topicID)
	if !ok {
		return fmt.Errorf("unknown topic: %s", topicID)
	}
	iv.publishQuestion(topic.Starter, topic.ID)
	return nil
}

func (iv *Interviewer) onDirective(d types.CoordinatorDirective) {
	switch d.Directive {
	case types.DirectiveProbe:
		iv.generate(d.Topic, iv.probePrompt(d.Topic), probeFallback)
	case types.DirectiveTransition:
		next, ok := iv.registry.Get(d.NextTopic)
		if !ok {
			iv.logger.Warn("transition directive without a valid next topic",
				zap.String("next_topic", string(d.NextTopic)))
			iv.publishQuestion(endMessage, d.Topic)
			return
		}
		fallback := fmt.Sprintf("Great thoughts! Now, %s", next.Starter)
		iv.generate(next.ID, iv.transitionPrompt(d.Topic, next), fallback)
	case types.DirectiveFinalQuestion:
		topic, ok := iv.registry.Get(d.Topic)
		if !ok {
			topic = iv.registry.First()
		}
		q := fmt.Sprintf("We're almost out of time, but I'd love to hear one quick thought: %s", topic.Starter)
		iv.publishQuestion(q, topic.ID)
	case types.DirectiveEndInterview:
		iv.publishQuestion(endMessage, d.Topic)
	}
}

// generate runs the LLM question generation in a detached task, publishing
// the fallback on any failure. The handler loop never waits on the network.
func (iv *Interviewer) generate(topicID content.TopicID, prompt string, fallback string) {
	if iv.provider == nil {
		iv.publishQuestion(fallback, topicID)
		return
	}

	epoch := iv.state.Epoch()
	go func() {
		question := fallback
		ctx, cancel := context.WithTimeout(context.Background(), llmCallTimeout)
		defer cancel()

		out, err := iv.provider.Complete(ctx, llm.Request{
			System:      interviewerSystemPrompt,
			User:        prompt,
			Temperature: iv.temperature,
			MaxTokens:   iv.maxTokens,
		})
		if err != nil {
			iv.logger.Warn("question generation failed, using fallback", zap.Error(err))
		} else if trimmed := strings.TrimSpace(llm.StripFences(out)); trimmed != "" {
			question = trimmed
		}

		if iv.state.Epoch() != epoch {
			iv.logger.Debug("discarding stale generated question")
			return
		}
		iv.publishQuestion(question, topicID)
	}()
}

func (iv *Interviewer) publishQuestion(question string, topicID content.TopicID) {
	iv.remember(types.RoleInterviewer, question)
	iv.state.AddToHistory(types.RoleInterviewer, question)

	if _, _, err := iv.bus.Publish(types.TopicQuestionAsked, iv.ID(), types.QuestionAsked{
		Question: question,
		Topic:    topicID,
		TS:       time.Now(),
	}); err != nil {
		iv.logger.Warn("failed to publish question", zap.Error(err))
	}
}

func (iv *Interviewer) remember(role types.Role, text string) {
	iv.historyMu.Lock()
	iv.history = append(iv.history, exchange{role: role, text: text})
	if len(iv.history) > iv.historyLimit {
		iv.history = iv.history[len(iv.history)-iv.historyLimit:]
	}
	iv.historyMu.Unlock()
}

const interviewerSystemPrompt = "You are a warm, encouraging interviewer talking with a student about a book they read. Ask one short spoken-style question at a time. Reply with the question only."

func (iv *Interviewer) probePrompt(topicID content.TopicID) string {
	topic, _ := iv.registry.Get(topicID)
	book := iv.registry.Book()
	return heredoc.Docf(`
		Book: %s by %s
		Current topic: %s

		Recent conversation:
		%s

		The student's last answer was shallow. Ask one natural follow-up
		question that digs deeper into the same topic.`,
		book.Title, book.Author, topic.Name, iv.historyText())
}

func (iv *Interviewer) transitionPrompt(from content.TopicID, next content.Topic) string {
	fromTopic, _ := iv.registry.Get(from)
	book := iv.registry.Book()
	return heredoc.Docf(`
		Book: %s by %s
		We are finishing the topic "%s" and moving to "%s".

		Recent conversation:
		%s

		Briefly acknowledge the student's last answer, then ask a question
		that moves to the new topic. Base it on: %s`,
		book.Title, book.Author, fromTopic.Name, next.Name, iv.historyText(), next.Starter)
}

func (iv *Interviewer) historyText() string {
	iv.historyMu.Lock()
	defer iv.historyMu.Unlock()
	if len(iv.history) == 0 {
		return "(none yet)"
	}
	var sb strings.Builder
	for _, e := range iv.history {
		fmt.Fprintf(&sb, "%s: %s\n", e.role, e.text)
	}
	return sb.String()
}

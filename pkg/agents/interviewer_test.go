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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/interview"
	"github.com/viva-labs/viva/pkg/llm"
	"github.com/viva-labs/viva/pkg/types"
)

func interviewerHarness(t *testing.T, provider llm.Provider) (*Interviewer, *bus.Subscription, *content.Registry) {
	t.Helper()
	reg, err := content.NewRegistry()
	require.NoError(t, err)
	b := bus.New(zaptest.NewLogger(t))
	t.Cleanup(func() { _ = b.Close() })

	sub, err := b.Subscribe("observer", types.TopicQuestionAsked)
	require.NoError(t, err)

	state := interview.NewState(b, reg, zaptest.NewLogger(t))
	iv := NewInterviewer(b, reg, state, provider, zaptest.NewLogger(t))
	return iv, sub, reg
}

func recvQuestion(t *testing.T, c <-chan *bus.Message) types.QuestionAsked {
	t.Helper()
	select {
	case msg := <-c:
		return msg.Event.(types.QuestionAsked)
	case <-time.After(2 * time.Second):
		t.Fatal("no question published")
		return types.QuestionAsked{}
	}
}

func TestAskStarterVerbatim(t *testing.T) {
	iv, sub, reg := interviewerHarness(t, nil)

	require.NoError(t, iv.AskStarter(content.TopicTheme))

	q := recvQuestion(t, sub.C)
	topic, _ := reg.Get(content.TopicTheme)
	assert.Equal(t, topic.Starter, q.Question)
	assert.Equal(t, content.TopicTheme, q.Topic)

	assert.Error(t, iv.AskStarter("bogus"))
}

func TestInterviewStartedAsksFirstStarter(t *testing.T) {
	iv, sub, reg := interviewerHarness(t, nil)

	iv.HandleEvent(&bus.Message{Event: types.InterviewStarted{Snapshot: types.Snapshot{
		CurrentTopic: content.TopicTheme,
	}}})

	q := recvQuestion(t, sub.C)
	assert.Equal(t, reg.First().Starter, q.Question)
}

func TestProbeFallbackWithoutProvider(t *testing.T) {
	iv, sub, _ := interviewerHarness(t, nil)

	iv.HandleEvent(&bus.Message{Event: types.CoordinatorDirective{
		Directive: types.DirectiveProbe,
		Topic:     content.TopicTheme,
	}})

	q := recvQuestion(t, sub.C)
	assert.Equal(t, "That's interesting! Can you tell me more about what made you think that?", q.Question)
}

func TestProbeFallbackOnProviderError(t *testing.T) {
	iv, sub, _ := interviewerHarness(t, llm.NewFailing(errors.New("timeout")))

	iv.HandleEvent(&bus.Message{Event: types.CoordinatorDirective{
		Directive: types.DirectiveProbe,
		Topic:     content.TopicTheme,
	}})

	q := recvQuestion(t, sub.C)
	assert.Equal(t, "That's interesting! Can you tell me more about what made you think that?", q.Question)
}

func TestProbeUsesLLMQuestion(t *testing.T) {
	provider := llm.NewScripted("What part of Charlotte's plan surprised you the most?")
	iv, sub, _ := interviewerHarness(t, provider)

	iv.HandleEvent(&bus.Message{Event: types.CoordinatorDirective{
		Directive: types.DirectiveProbe,
		Topic:     content.TopicTheme,
	}})

	q := recvQuestion(t, sub.C)
	assert.Equal(t, "What part of Charlotte's plan surprised you the most?", q.Question)
}

func TestTransitionFallbackSeedsNextStarter(t *testing.T) {
	iv, sub, reg := interviewerHarness(t, nil)

	iv.HandleEvent(&bus.Message{Event: types.CoordinatorDirective{
		Directive: types.DirectiveTransition,
		Topic:     content.TopicTheme,
		NextTopic: content.TopicCharacters,
	}})

	q := recvQuestion(t, sub.C)
	next, _ := reg.Get(content.TopicCharacters)
	assert.Equal(t, fmt.Sprintf("Great thoughts! Now, %s", next.Starter), q.Question)
	assert.Equal(t, content.TopicCharacters, q.Topic)
}

func TestFinalQuestionTemplate(t *testing.T) {
	iv, sub, reg := interviewerHarness(t, nil)

	iv.HandleEvent(&bus.Message{Event: types.CoordinatorDirective{
		Directive: types.DirectiveFinalQuestion,
		Topic:     content.TopicSetting,
	}})

	q := recvQuestion(t, sub.C)
	topic, _ := reg.Get(content.TopicSetting)
	want := fmt.Sprintf("We're almost out of time, but I'd love to hear one quick thought: %s", topic.Starter)
	assert.Equal(t, want, q.Question)
}

func TestEndInterviewIsDeterministic(t *testing.T) {
	// Even with a provider, the ending never touches the LLM.
	provider := llm.NewScripted("should not be used")
	iv, sub, _ := interviewerHarness(t, provider)

	iv.HandleEvent(&bus.Message{Event: types.CoordinatorDirective{
		Directive: types.DirectiveEndInterview,
		Topic:     content.TopicPersonal,
	}})

	q := recvQuestion(t, sub.C)
	assert.Contains(t, q.Question, "Thank you")
	assert.Empty(t, provider.Calls())
}

func TestHistoryCappedAtLimit(t *testing.T) {
	provider := llm.NewScripted("follow-up?")
	iv, sub, _ := interviewerHarness(t, provider)

	for i := 0; i < 10; i++ {
		iv.HandleEvent(&bus.Message{Event: types.StudentResponse{
			Text: fmt.Sprintf("answer %d", i),
			TS:   time.Now(),
		}})
	}

	iv.HandleEvent(&bus.Message{Event: types.CoordinatorDirective{
		Directive: types.DirectiveProbe,
		Topic:     content.TopicTheme,
	}})
	recvQuestion(t, sub.C)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].User, "answer 0", "old exchanges drop out of the window")
	assert.Contains(t, calls[0].User, "answer 9")
}

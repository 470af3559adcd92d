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
package coordinator

import (
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

const testWindow = 50 * time.Millisecond

type harness struct {
	coord *Coordinator
	state *interview.State
	bus   *bus.Bus
	reg   *content.Registry
	sub   *bus.Subscription
}

func newHarness(t *testing.T, provider llm.Provider) *harness {
	t.Helper()
	reg, err := content.NewRegistry()
	require.NoError(t, err)
	b := bus.New(zaptest.NewLogger(t))
	t.Cleanup(func() { _ = b.Close() })

	sub, err := b.Subscribe("observer", types.TopicCoordinatorDirective)
	require.NoError(t, err)

	state := interview.NewState(b, reg, zaptest.NewLogger(t))
	_, err = state.Start()
	require.NoError(t, err)

	coord := New(b, reg, state, provider, zaptest.NewLogger(t), WithWindow(testWindow))
	return &harness{coord: coord, state: state, bus: b, reg: reg, sub: sub}
}

func (h *harness) respond(topic content.TopicID, text string) {
	h.coord.HandleEvent(&bus.Message{Event: types.StudentResponse{
		Topic: topic,
		Text:  text,
		TS:    time.Now(),
	}})
}

func (h *harness) observe(agent string, payload types.ObservationPayload) {
	h.coord.HandleEvent(&bus.Message{Event: types.AgentObservation{
		Agent:   agent,
		TS:      time.Now(),
		Payload: payload,
	}})
}

func (h *harness) recvDirective(t *testing.T) types.CoordinatorDirective {
	t.Helper()
	select {
	case msg := <-h.sub.C:
		return msg.Event.(types.CoordinatorDirective)
	case <-time.After(2 * time.Second):
		t.Fatal("no directive emitted")
		return types.CoordinatorDirective{}
	}
}

func (h *harness) expectNoDirective(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case msg := <-h.sub.C:
		t.Fatalf("unexpected directive: %+v", msg.Event)
	case <-time.After(within):
	}
}

func TestWindowEmitsSingleTransition(t *testing.T) {
	h := newHarness(t, nil)

	h.respond(content.TopicTheme, "Friendship means showing up, like Charlotte did.")
	h.observe(types.AgentTimekeeper, types.TimeObservation{
		Pressure: types.PressureLow, RemainingSeconds: 250, TopicsLeft: 5,
	})
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicTheme, Rating: 3, Recommendation: types.DepthAccept,
	})

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveTransition, d.Directive)
	assert.Equal(t, content.TopicTheme, d.Topic)
	assert.Equal(t, content.TopicCharacters, d.NextTopic)
	assert.Equal(t, types.SourceFallback, d.Source)
	assert.Equal(t, []string{types.AgentDepthExpert, types.AgentTimekeeper}, d.ObservationsReceived)

	// The topic advanced before the directive was published.
	snap := h.state.Snapshot()
	assert.Equal(t, 1, snap.TopicsCompleted)
	assert.Equal(t, content.TopicCharacters, snap.CurrentTopic)
	assert.Equal(t, 3, snap.TopicScores[content.TopicTheme])

	h.expectNoDirective(t, 4*testWindow)
}

func TestNoObservationsDefaultsToProbe(t *testing.T) {
	h := newHarness(t, nil)

	h.respond(content.TopicTheme, "it was fine")

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveProbe, d.Directive)
	assert.Empty(t, d.ObservationsReceived)
}

func TestLatestObservationPerAgentWins(t *testing.T) {
	h := newHarness(t, nil)

	h.respond(content.TopicTheme, "answer")
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicTheme, Rating: 1, Recommendation: types.DepthProbe,
	})
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicTheme, Rating: 3, Recommendation: types.DepthAccept,
	})

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveTransition, d.Directive)
	assert.Equal(t, 3, h.state.Snapshot().TopicScores[content.TopicTheme])
}

func TestRapidSecondResponseReplacesWindow(t *testing.T) {
	h := newHarness(t, nil)

	h.respond(content.TopicTheme, "first answer")
	time.Sleep(testWindow / 3)
	h.respond(content.TopicTheme, "second answer")
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicTheme, Rating: 3, Recommendation: types.DepthAccept,
	})

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveTransition, d.Directive,
		"directive reflects observations about the second response")

	h.expectNoDirective(t, 4*testWindow)
}

func TestCriticalTimeEndsInterview(t *testing.T) {
	h := newHarness(t, nil)

	h.respond(content.TopicTheme, "answer")
	h.observe(types.AgentTimekeeper, types.TimeObservation{
		Pressure: types.PressureCritical, RemainingSeconds: 15, TopicsLeft: 4,
	})
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicTheme, Rating: 3, Recommendation: types.DepthAccept,
	})

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveEndInterview, d.Directive)
	assert.Equal(t, types.StatusCompleted, h.state.Snapshot().Status)

	// Once ended, further responses produce nothing.
	h.respond(content.TopicTheme, "too late")
	h.expectNoDirective(t, 4*testWindow)
}

func TestTransitionOnLastTopicEndsInterview(t *testing.T) {
	h := newHarness(t, nil)

	for _, id := range []content.TopicID{content.TopicTheme, content.TopicCharacters, content.TopicPlot, content.TopicSetting} {
		require.NoError(t, h.state.CompleteTopic(id))
	}
	require.Equal(t, content.TopicPersonal, h.state.Snapshot().CurrentTopic)

	h.respond(content.TopicPersonal, "the fair scene stuck with me")
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicPersonal, Rating: 3, Recommendation: types.DepthAccept,
	})

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveEndInterview, d.Directive)
	assert.Empty(t, d.NextTopic)
	assert.Equal(t, types.StatusCompleted, h.state.Snapshot().Status)
}

func TestLLMSynthesisDecides(t *testing.T) {
	provider := llm.NewScripted("DECISION: PROBE\nREASONING: the answer lacks specifics")
	h := newHarness(t, provider)

	h.respond(content.TopicTheme, "it was about a pig")
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicTheme, Rating: 2, Recommendation: types.DepthAccept,
	})

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveProbe, d.Directive)
	assert.Equal(t, types.SourceLLM, d.Source)
	assert.Equal(t, "the answer lacks specifics", d.Reasoning)
}

func TestMalformedLLMOutputFallsBack(t *testing.T) {
	provider := llm.NewScripted("I think you should keep chatting!")
	h := newHarness(t, provider)

	h.respond(content.TopicTheme, "answer")
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicTheme, Rating: 3, Recommendation: types.DepthAccept,
	})

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveTransition, d.Directive)
	assert.Equal(t, types.SourceFallback, d.Source)
}

func TestLLMTransitionOnLastTopicBecomesEnd(t *testing.T) {
	provider := llm.NewScripted("DECISION: TRANSITION\nREASONING: covered well")
	h := newHarness(t, provider)

	for _, id := range []content.TopicID{content.TopicTheme, content.TopicCharacters, content.TopicPlot, content.TopicSetting} {
		require.NoError(t, h.state.CompleteTopic(id))
	}

	h.respond(content.TopicPersonal, "final thoughts")

	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveEndInterview, d.Directive)
	assert.Equal(t, types.SourceLLM, d.Source)
}

func TestObservationsOutsideWindowIgnored(t *testing.T) {
	h := newHarness(t, nil)

	// No window open: observation is dropped.
	h.observe(types.AgentDepthExpert, types.DepthObservation{
		Topic: content.TopicTheme, Rating: 3, Recommendation: types.DepthAccept,
	})

	h.respond(content.TopicTheme, "answer")
	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveProbe, d.Directive, "pre-window observation must not leak in")
}

func TestResetReopensCoordinator(t *testing.T) {
	h := newHarness(t, nil)

	h.respond(content.TopicTheme, "answer")
	h.observe(types.AgentTimekeeper, types.TimeObservation{
		Pressure: types.PressureCritical, RemainingSeconds: 10, TopicsLeft: 5,
	})
	h.recvDirective(t)

	// New session: the coordinator accepts responses again.
	h.state.Reset()
	h.coord.HandleEvent(&bus.Message{Event: types.InterviewReset{TS: time.Now()}})
	_, err := h.state.Start()
	require.NoError(t, err)
	h.coord.HandleEvent(&bus.Message{Event: types.InterviewStarted{Snapshot: h.state.Snapshot()}})

	h.respond(content.TopicTheme, "fresh answer")
	d := h.recvDirective(t)
	assert.Equal(t, types.DirectiveProbe, d.Directive)
}

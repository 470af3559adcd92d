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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/types"
)

func newTestState(t *testing.T) (*State, *bus.Bus, *content.Registry) {
	t.Helper()
	reg, err := content.NewRegistry()
	require.NoError(t, err)
	b := bus.New(zaptest.NewLogger(t))
	t.Cleanup(func() { _ = b.Close() })
	return NewState(b, reg, zaptest.NewLogger(t)), b, reg
}

func nextEvent(t *testing.T, c <-chan *bus.Message) *bus.Message {
	t.Helper()
	select {
	case msg, ok := <-c:
		require.True(t, ok)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestStartPublishesSnapshot(t *testing.T) {
	state, b, _ := newTestState(t)
	sub, err := b.Subscribe("observer", types.TopicEvents)
	require.NoError(t, err)

	snap, err := state.Start()
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, snap.Status)
	assert.Equal(t, content.TopicTheme, snap.CurrentTopic)
	assert.NotNil(t, snap.StartedAt)
	assert.Equal(t, 0, snap.TopicsCompleted)

	msg := nextEvent(t, sub.C)
	started, ok := msg.Event.(types.InterviewStarted)
	require.True(t, ok)
	assert.Equal(t, snap.Epoch, started.Snapshot.Epoch)

	_, err = state.Start()
	assert.Error(t, err, "double start should be rejected")
}

func TestRecordResponsePublishes(t *testing.T) {
	state, b, _ := newTestState(t)
	sub, err := b.Subscribe("observer", types.TopicStudentResponse)
	require.NoError(t, err)

	assert.Error(t, state.RecordResponse(content.TopicTheme, "too early"))

	_, err = state.Start()
	require.NoError(t, err)
	require.NoError(t, state.RecordResponse(content.TopicTheme, "friendship matters"))

	msg := nextEvent(t, sub.C)
	resp := msg.Event.(types.StudentResponse)
	assert.Equal(t, content.TopicTheme, resp.Topic)
	assert.Equal(t, "friendship matters", resp.Text)

	snap := state.Snapshot()
	assert.Equal(t, []string{"friendship matters"}, snap.ResponsesByTopic[content.TopicTheme])
	require.Len(t, snap.History, 1)
	assert.Equal(t, types.RoleStudent, snap.History[0].Role)

	assert.Error(t, state.RecordResponse("bogus", "x"))
}

func TestCompleteTopicAdvancesInOrder(t *testing.T) {
	state, b, reg := newTestState(t)
	sub, err := b.Subscribe("observer", types.TopicTopicCompleted)
	require.NoError(t, err)

	_, err = state.Start()
	require.NoError(t, err)

	// Only the current topic can be completed.
	assert.Error(t, state.CompleteTopic(content.TopicPlot))

	order := reg.All()
	for i, topic := range order {
		require.NoError(t, state.CompleteTopic(topic.ID))

		msg := nextEvent(t, sub.C)
		completed := msg.Event.(types.TopicCompleted)
		assert.Equal(t, topic.ID, completed.Topic.Completed)

		snap := state.Snapshot()
		assert.Equal(t, i+1, snap.TopicsCompleted)
		if i < len(order)-1 {
			assert.Equal(t, order[i+1].ID, snap.CurrentTopic)
			assert.Equal(t, order[i+1].ID, completed.Topic.Next)
		} else {
			// Last topic: current topic does not regress or wrap.
			assert.Equal(t, topic.ID, snap.CurrentTopic)
			assert.Empty(t, completed.Topic.Next)
		}
	}

	assert.Equal(t, 5, state.Snapshot().TopicsCompleted)
}

func TestRecordScore(t *testing.T) {
	state, _, _ := newTestState(t)
	require.NoError(t, state.RecordScore(content.TopicTheme, 3))
	assert.Error(t, state.RecordScore(content.TopicTheme, 0))
	assert.Error(t, state.RecordScore(content.TopicTheme, 4))
	assert.Equal(t, 3, state.Snapshot().TopicScores[content.TopicTheme])
}

func TestFinishAndReset(t *testing.T) {
	state, b, _ := newTestState(t)
	sub, err := b.Subscribe("observer", types.TopicEvents)
	require.NoError(t, err)

	snap1, err := state.Start()
	require.NoError(t, err)
	nextEvent(t, sub.C) // interview_started

	state.Finish()
	assert.Equal(t, types.StatusCompleted, state.Snapshot().Status)
	assert.Error(t, state.RecordResponse(content.TopicTheme, "late"))
	state.Finish() // idempotent

	state.Reset()
	msg := nextEvent(t, sub.C)
	assert.IsType(t, types.InterviewReset{}, msg.Event)

	snap2 := state.Snapshot()
	assert.Equal(t, types.StatusNotStarted, snap2.Status)
	assert.Empty(t, snap2.ResponsesByTopic)
	assert.Equal(t, 0, snap2.TopicsCompleted)
	assert.Greater(t, snap2.Epoch, snap1.Epoch, "reset must bump the epoch")
}

func TestClockInjection(t *testing.T) {
	reg, err := content.NewRegistry()
	require.NoError(t, err)
	b := bus.New(zaptest.NewLogger(t))
	defer b.Close()

	fixed := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	state := NewState(b, reg, zaptest.NewLogger(t), WithClock(func() time.Time { return fixed }))

	snap, err := state.Start()
	require.NoError(t, err)
	assert.True(t, snap.StartedAt.Equal(fixed))
}

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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/types"
)

// crashyAgent panics on the first message of every run, then works.
type crashyAgent struct {
	id       string
	handled  atomic.Int32
	resets   atomic.Int32
	panicked atomic.Bool
}

func (a *crashyAgent) ID() string       { return a.id }
func (a *crashyAgent) Topics() []string { return []string{types.TopicTick} }
func (a *crashyAgent) Reset()           { a.resets.Add(1) }

func (a *crashyAgent) HandleEvent(*bus.Message) {
	if a.panicked.CompareAndSwap(false, true) {
		panic("simulated handler crash")
	}
	a.handled.Add(1)
}

// countingAgent records every message it handles.
type countingAgent struct {
	id      string
	handled atomic.Int32
}

func (a *countingAgent) ID() string               { return a.id }
func (a *countingAgent) Topics() []string         { return []string{types.TopicTick} }
func (a *countingAgent) HandleEvent(*bus.Message) { a.handled.Add(1) }

func publishTicks(t *testing.T, b *bus.Bus, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, _, err := b.Publish(types.TopicTick, types.AgentTicker, types.Tick{TS: time.Now()})
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSupervisorRestartsCrashedAgent(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	defer b.Close()

	crashy := &crashyAgent{id: "crashy"}
	sup := NewSupervisor(b, zaptest.NewLogger(t), WithRestartBackoff(20*time.Millisecond))
	sup.Add(crashy)
	require.NoError(t, sup.Start())
	defer sup.Stop()

	// First tick crashes the agent; later ticks land after the restart.
	publishTicks(t, b, 10)

	assert.Eventually(t, func() bool {
		return crashy.handled.Load() > 0
	}, 2*time.Second, 20*time.Millisecond, "restarted agent should handle messages again")
	assert.GreaterOrEqual(t, crashy.resets.Load(), int32(1), "agent state reset on restart")
}

func TestCrashDoesNotAffectPeers(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	defer b.Close()

	crashy := &crashyAgent{id: "crashy"}
	peer := &countingAgent{id: "peer"}
	sup := NewSupervisor(b, zaptest.NewLogger(t), WithRestartBackoff(20*time.Millisecond))
	sup.Add(crashy)
	sup.Add(peer)
	require.NoError(t, sup.Start())
	defer sup.Stop()

	publishTicks(t, b, 10)

	assert.Eventually(t, func() bool {
		return peer.handled.Load() == 10
	}, 2*time.Second, 20*time.Millisecond, "peer must receive every message")
}

func TestSupervisorStopHaltsAgents(t *testing.T) {
	b := bus.New(zaptest.NewLogger(t))
	defer b.Close()

	agent := &countingAgent{id: "worker"}
	sup := NewSupervisor(b, zaptest.NewLogger(t))
	sup.Add(agent)
	require.NoError(t, sup.Start())

	publishTicks(t, b, 2)
	assert.Eventually(t, func() bool { return agent.handled.Load() == 2 },
		2*time.Second, 10*time.Millisecond)

	sup.Stop()
	before := agent.handled.Load()

	_, _, err := b.Publish(types.TopicTick, types.AgentTicker, types.Tick{TS: time.Now()})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, agent.handled.Load(), "no handling after stop")

	assert.Error(t, sup.Start(), "started flag is reset only by construction")
}

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
package bus

import (
	"sync"

	"github.com/viva-labs/viva/pkg/types"
)

// mailbox is a per-subscriber queue with a pump goroutine feeding the
// subscriber channel. Push never blocks: when the queue is at capacity the
// oldest non-critical message is evicted. Messages on critical topics are
// never evicted; the queue grows past capacity to hold them.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Message
	cap    int
	closed bool

	out  chan *Message
	done chan struct{}
}

func newMailbox(capacity int) *mailbox {
	if capacity <= 0 {
		capacity = DefaultMailboxCap
	}
	m := &mailbox{
		cap:  capacity,
		out:  make(chan *Message),
		done: make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.pump()
	return m
}

// push enqueues msg. Returns whether it was accepted and how many older
// messages were evicted to make room.
func (m *mailbox) push(msg *Message) (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, 0
	}

	evicted := 0
	if len(m.queue) >= m.cap {
		for i, queued := range m.queue {
			if !types.CriticalTopic(queued.Topic) {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				evicted = 1
				break
			}
		}
		// All queued messages critical: grow rather than drop.
	}

	m.queue = append(m.queue, msg)
	m.cond.Signal()
	return true, evicted
}

// pump moves queued messages to the subscriber channel in order.
func (m *mailbox) pump() {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if m.closed {
			m.mu.Unlock()
			close(m.out)
			return
		}
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- msg:
		case <-m.done:
			close(m.out)
			return
		}
	}
}

// close drops any queued messages and closes the subscriber channel.
// Idempotent.
func (m *mailbox) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.queue = nil
	m.cond.Signal()
	m.mu.Unlock()
	close(m.done)
}

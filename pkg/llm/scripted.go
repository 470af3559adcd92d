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
package llm

import (
	"context"
	"sync"
)

// Scripted is a deterministic Provider for tests. It returns queued
// responses in order, repeating the last one when exhausted, and records
// every request it receives.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	next      int
	err       error
	calls     []Request
}

// NewScripted creates a scripted provider that plays back responses in order.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

// NewFailing creates a scripted provider whose every call fails with err.
func NewFailing(err error) *Scripted {
	return &Scripted{err: err}
}

// Complete implements Provider.
func (s *Scripted) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	resp := s.responses[s.next]
	if s.next < len(s.responses)-1 {
		s.next++
	}
	return resp, nil
}

// Name implements Provider.
func (s *Scripted) Name() string { return "scripted" }

// Model implements Provider.
func (s *Scripted) Model() string { return "scripted" }

// Calls returns a copy of every request received so far.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

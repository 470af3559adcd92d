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

// Package llm defines the text completion provider contract used by the
// LLM-backed agents, plus helpers for defensive parsing of model output.
package llm

import "context"

// Request is a single synchronous completion request.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Provider is a synchronous text completion service.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Complete sends the request and returns the model's text output.
	Complete(ctx context.Context, req Request) (string, error)

	// Name identifies the provider (e.g. "anthropic").
	Name() string

	// Model identifies the model in use.
	Model() string
}

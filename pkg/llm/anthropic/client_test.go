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
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viva-labs/viva/pkg/llm"
)

func TestCompleteSendsMessagesRequest(t *testing.T) {
	var got messagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: "hello "}, {Type: "text", Text: "there"}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", Endpoint: server.URL})

	out, err := client.Complete(context.Background(), llm.Request{
		System:      "sys",
		User:        "user prompt",
		Temperature: 0.3,
		MaxTokens:   200,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, "sys", got.System)
	assert.Equal(t, 200, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "user prompt", got.Messages[0].Content)
}

func TestCompleteNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", Endpoint: server.URL})
	_, err := client.Complete(context.Background(), llm.Request{User: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestCompleteEmptyContentIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(messagesResponse{})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", Endpoint: server.URL})
	_, err := client.Complete(context.Background(), llm.Request{User: "x"})
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, ok := FromEnv("")
	assert.False(t, ok)

	t.Setenv("ANTHROPIC_API_KEY", "key-123")
	client, ok := FromEnv("custom-model")
	require.True(t, ok)
	assert.Equal(t, "custom-model", client.Model())
	assert.Equal(t, "anthropic", client.Name())
}

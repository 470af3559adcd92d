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
package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, "Charlotte's Web", reg.Book().Title)
	assert.Equal(t, 5, reg.Count())

	want := []TopicID{TopicTheme, TopicCharacters, TopicPlot, TopicSetting, TopicPersonal}
	for i, topic := range reg.All() {
		assert.Equal(t, want[i], topic.ID)
		assert.NotEmpty(t, topic.Starter)
		assert.NotEmpty(t, topic.DepthCriteria)
	}
}

func TestRegistryOrder(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, TopicTheme, reg.First().ID)

	next, ok := reg.Next(TopicTheme)
	require.True(t, ok)
	assert.Equal(t, TopicCharacters, next.ID)

	_, ok = reg.Next(TopicPersonal)
	assert.False(t, ok, "no topic follows the last one")

	assert.True(t, reg.IsLast(TopicPersonal))
	assert.False(t, reg.IsLast(TopicTheme))
}

func TestRegistryGet(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	topic, ok := reg.Get(TopicPlot)
	require.True(t, ok)
	assert.Equal(t, "Plot & Structure", topic.Name)

	_, ok = reg.Get("nonsense")
	assert.False(t, ok)
}

func TestLoadRejectsBadContent(t *testing.T) {
	cases := map[string]string{
		"no topics":    "book:\n  title: X\n",
		"missing id":   "topics:\n  - name: A\n    starter: q\n",
		"no starter":   "topics:\n  - id: a\n    name: A\n",
		"duplicate id": "topics:\n  - id: a\n    starter: q\n  - id: a\n    starter: q2\n",
		"bad yaml":     "topics: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(data))
			assert.Error(t, err)
		})
	}
}

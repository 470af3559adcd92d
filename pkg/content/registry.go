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

// Package content holds the immutable interview content: the book under
// discussion and the fixed, ordered set of discussion topics.
package content

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TopicID identifies one of the fixed discussion topics.
type TopicID string

// The five topics, in interview order.
const (
	TopicTheme      TopicID = "theme"
	TopicCharacters TopicID = "characters"
	TopicPlot       TopicID = "plot"
	TopicSetting    TopicID = "setting"
	TopicPersonal   TopicID = "personal"
)

// Topic is one discussion area. Topics are immutable after load.
type Topic struct {
	ID            TopicID `yaml:"id"`
	Name          string  `yaml:"name"`
	Starter       string  `yaml:"starter"`
	DepthCriteria string  `yaml:"depth_criteria"`
}

// Book identifies the work the interview is about.
type Book struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

// Registry is the immutable topic registry. Safe for concurrent reads.
type Registry struct {
	book   Book
	topics []Topic
	index  map[TopicID]int
}

//go:embed book.yaml
var embeddedContent []byte

type contentFile struct {
	Book   Book    `yaml:"book"`
	Topics []Topic `yaml:"topics"`
}

// NewRegistry loads the embedded book content.
func NewRegistry() (*Registry, error) {
	return Load(embeddedContent)
}

// Load parses YAML content into a registry.
func Load(data []byte) (*Registry, error) {
	var file contentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	if len(file.Topics) == 0 {
		return nil, fmt.Errorf("content has no topics")
	}

	index := make(map[TopicID]int, len(file.Topics))
	for i, t := range file.Topics {
		if t.ID == "" {
			return nil, fmt.Errorf("topic %d has no id", i)
		}
		if t.Starter == "" {
			return nil, fmt.Errorf("topic %q has no starter question", t.ID)
		}
		if _, dup := index[t.ID]; dup {
			return nil, fmt.Errorf("duplicate topic id %q", t.ID)
		}
		index[t.ID] = i
	}

	return &Registry{
		book:   file.Book,
		topics: file.Topics,
		index:  index,
	}, nil
}

// Book returns the book under discussion.
func (r *Registry) Book() Book {
	return r.book
}

// All returns the topics in interview order.
func (r *Registry) All() []Topic {
	out := make([]Topic, len(r.topics))
	copy(out, r.topics)
	return out
}

// Count returns the number of topics.
func (r *Registry) Count() int {
	return len(r.topics)
}

// Get looks up a topic by id.
func (r *Registry) Get(id TopicID) (Topic, bool) {
	i, ok := r.index[id]
	if !ok {
		return Topic{}, false
	}
	return r.topics[i], true
}

// First returns the first topic in interview order.
func (r *Registry) First() Topic {
	return r.topics[0]
}

// Next returns the topic that follows id in interview order.
// ok is false when id is the last topic or unknown.
func (r *Registry) Next(id TopicID) (Topic, bool) {
	i, found := r.index[id]
	if !found || i+1 >= len(r.topics) {
		return Topic{}, false
	}
	return r.topics[i+1], true
}

// IsLast reports whether id is the final topic.
func (r *Registry) IsLast(id TopicID) bool {
	i, found := r.index[id]
	return found && i == len(r.topics)-1
}

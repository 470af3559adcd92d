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

// Package types defines the bus topics, event taxonomy, and shared value
// types exchanged between the interview agents.
package types

import (
	"time"

	"github.com/viva-labs/viva/pkg/content"
)

// Bus topics.
const (
	TopicEvents               = "interview:events"
	TopicTick                 = "interview:tick"
	TopicStudentResponse      = "interview:student_response"
	TopicQuestionAsked        = "interview:question_asked"
	TopicTopicCompleted       = "interview:topic_completed"
	TopicAgentObservation     = "interview:agent_observation"
	TopicCoordinatorDirective = "interview:coordinator_directive"
)

// CriticalTopic reports whether messages on topic must never be dropped
// by a full subscriber mailbox.
func CriticalTopic(topic string) bool {
	return topic == TopicStudentResponse || topic == TopicCoordinatorDirective
}

// Agent identifiers used as message sources and observation keys.
const (
	AgentState       = "interview_state"
	AgentTicker      = "ticker"
	AgentTimekeeper  = "timekeeper"
	AgentGrader      = "grader"
	AgentDepthExpert = "depth_expert"
	AgentInterviewer = "interviewer"
	AgentCoordinator = "coordinator"
)

// Status is the interview session lifecycle state.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Role tags a conversation history entry.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleStudent     Role = "student"
	RoleSystem      Role = "system"
)

// Pressure is the Timekeeper's categorical urgency level.
type Pressure string

const (
	PressureLow      Pressure = "low"
	PressureMedium   Pressure = "medium"
	PressureHigh     Pressure = "high"
	PressureCritical Pressure = "critical"
)

// PaceRecommendation is the Timekeeper's pacing advice.
type PaceRecommendation string

const (
	PaceOnPace     PaceRecommendation = "on_pace"
	PaceAccelerate PaceRecommendation = "accelerate"
	PaceWrapUp     PaceRecommendation = "wrap_up"
)

// DepthRecommendation is the DepthExpert's advice for the current response.
type DepthRecommendation string

const (
	DepthProbe  DepthRecommendation = "probe"
	DepthAccept DepthRecommendation = "accept"
	DepthMoveOn DepthRecommendation = "move_on"
)

// DirectiveKind is the Coordinator's decision for the next interviewer action.
type DirectiveKind string

const (
	DirectiveProbe         DirectiveKind = "probe"
	DirectiveTransition    DirectiveKind = "transition"
	DirectiveFinalQuestion DirectiveKind = "final_question"
	DirectiveEndInterview  DirectiveKind = "end_interview"
)

// Source records whether a directive came from LLM synthesis or the
// rule-based fallback.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// HistoryEntry is one utterance in the conversation history.
type HistoryEntry struct {
	Role    Role            `json:"role"`
	Topic   content.TopicID `json:"topic"`
	Content string          `json:"content"`
	TS      time.Time       `json:"ts"`
}

// Snapshot is a read-only copy of the interview session state.
type Snapshot struct {
	StartedAt        *time.Time                   `json:"started_at"`
	Status           Status                       `json:"status"`
	CurrentTopic     content.TopicID              `json:"current_topic"`
	ResponsesByTopic map[content.TopicID][]string `json:"responses_by_topic"`
	TopicScores      map[content.TopicID]int      `json:"topic_scores"`
	History          []HistoryEntry               `json:"conversation_history"`
	TopicsCompleted  int                          `json:"topics_completed"`
	Epoch            uint64                       `json:"epoch"`
}

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
package types

import (
	"time"

	"github.com/viva-labs/viva/pkg/content"
)

// Event is the tagged union carried by bus messages. Subscribers switch on
// the concrete type; Kind is the stable wire tag for logging and the UI.
type Event interface {
	Kind() string
}

// Event kinds.
const (
	KindInterviewStarted     = "interview_started"
	KindInterviewReset       = "interview_reset"
	KindTick                 = "tick"
	KindStudentResponse      = "student_response"
	KindQuestionAsked        = "question_asked"
	KindTopicCompleted       = "topic_completed"
	KindAgentObservation     = "agent_observation"
	KindCoordinatorDirective = "coordinator_directive"
)

// InterviewStarted announces a fresh session on interview:events.
type InterviewStarted struct {
	Snapshot Snapshot `json:"snapshot"`
}

// Kind implements Event.
func (InterviewStarted) Kind() string { return KindInterviewStarted }

// InterviewReset announces a session reset on interview:events.
type InterviewReset struct {
	TS time.Time `json:"ts"`
}

// Kind implements Event.
func (InterviewReset) Kind() string { return KindInterviewReset }

// Tick is the periodic heartbeat while an interview is in progress.
type Tick struct {
	TS time.Time `json:"ts"`
}

// Kind implements Event.
func (Tick) Kind() string { return KindTick }

// StudentResponse is one student utterance on the current topic.
type StudentResponse struct {
	Topic content.TopicID `json:"topic"`
	Text  string          `json:"text"`
	TS    time.Time       `json:"ts"`
}

// Kind implements Event.
func (StudentResponse) Kind() string { return KindStudentResponse }

// QuestionAsked is an interviewer question presented to the student.
type QuestionAsked struct {
	Question string          `json:"question"`
	Topic    content.TopicID `json:"topic"`
	TS       time.Time       `json:"ts"`
}

// Kind implements Event.
func (QuestionAsked) Kind() string { return KindQuestionAsked }

// TopicCompleted announces that a topic has been accepted and the session
// advanced to the next one.
type TopicCompleted struct {
	Topic TopicCompletedTopic `json:"topic"`
	TS    time.Time           `json:"ts"`
}

// TopicCompletedTopic carries the completed topic and its successor
// (empty when the completed topic was the last).
type TopicCompletedTopic struct {
	Completed content.TopicID `json:"completed"`
	Next      content.TopicID `json:"next,omitempty"`
}

// Kind implements Event.
func (TopicCompleted) Kind() string { return KindTopicCompleted }

// AgentObservation is an agent's published opinion about the latest
// student response or tick. Payload is agent-specific.
type AgentObservation struct {
	Agent   string             `json:"agent"`
	TS      time.Time          `json:"timestamp"`
	Payload ObservationPayload `json:"observation"`
}

// Kind implements Event.
func (AgentObservation) Kind() string { return KindAgentObservation }

// ObservationPayload is the agent-specific half of an observation.
type ObservationPayload interface {
	Observer() string
}

// TimeObservation is the Timekeeper's pacing assessment.
type TimeObservation struct {
	ElapsedSeconds   float64            `json:"elapsed_seconds"`
	RemainingSeconds float64            `json:"remaining_seconds"`
	TopicsLeft       int                `json:"topics_left"`
	PaceSeconds      float64            `json:"pace_seconds_per_topic"`
	Pressure         Pressure           `json:"pressure"`
	Recommendation   PaceRecommendation `json:"recommendation"`
}

// Observer implements ObservationPayload.
func (TimeObservation) Observer() string { return AgentTimekeeper }

// DepthObservation is the DepthExpert's evaluation of one response.
type DepthObservation struct {
	Topic               content.TopicID     `json:"topic"`
	Rating              int                 `json:"rating"`
	Recommendation      DepthRecommendation `json:"recommendation"`
	Note                string              `json:"note"`
	FrustrationDetected bool                `json:"frustration_detected"`
	Question            string              `json:"question"`
}

// Observer implements ObservationPayload.
func (DepthObservation) Observer() string { return AgentDepthExpert }

// GradeObservation is the Grader's running assessment.
type GradeObservation struct {
	RunningGrade   string            `json:"running_grade"`
	NumericAverage float64           `json:"numeric_average"`
	TopicsScored   int               `json:"topics_scored"`
	CoverageGaps   []content.TopicID `json:"coverage_gaps"`
}

// Observer implements ObservationPayload.
func (GradeObservation) Observer() string { return AgentGrader }

// CoordinatorDirective is the Coordinator's single decision for the next
// interviewer action.
type CoordinatorDirective struct {
	Directive            DirectiveKind   `json:"directive"`
	Topic                content.TopicID `json:"topic"`
	NextTopic            content.TopicID `json:"next_topic,omitempty"`
	Reasoning            string          `json:"reasoning"`
	Source               Source          `json:"source"`
	ObservationsReceived []string        `json:"observations_received"`
	TS                   time.Time       `json:"ts"`
}

// Kind implements Event.
func (CoordinatorDirective) Kind() string { return KindCoordinatorDirective }

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
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"

	"github.com/viva-labs/viva/pkg/llm"
	"github.com/viva-labs/viva/pkg/types"
)

const synthesisTimeout = 10 * time.Second

// fallbackDecision is the rule-based decision procedure. It is total: it
// always produces a decision, whatever observations made it into the window.
func fallbackDecision(timeObs *types.TimeObservation, depthObs *types.DepthObservation) (types.DirectiveKind, string) {
	accepted := depthObs != nil &&
		(depthObs.Recommendation == types.DepthAccept || depthObs.Recommendation == types.DepthMoveOn)

	if timeObs != nil && (timeObs.Pressure == types.PressureCritical || timeObs.RemainingSeconds <= 30) {
		return types.DirectiveEndInterview,
			fmt.Sprintf("time is critical (%.0fs remaining)", timeObs.RemainingSeconds)
	}

	if timeObs != nil && timeObs.Pressure == types.PressureHigh && timeObs.TopicsLeft > 0 && !accepted {
		return types.DirectiveFinalQuestion,
			fmt.Sprintf("time pressure is high with %d topics left; one quick question on the current topic", timeObs.TopicsLeft)
	}

	if accepted {
		return types.DirectiveTransition,
			fmt.Sprintf("depth expert recommends %s; moving to the next topic", depthObs.Recommendation)
	}

	if depthObs != nil && depthObs.Recommendation == types.DepthProbe &&
		(timeObs == nil || timeObs.Pressure == types.PressureLow || timeObs.Pressure == types.PressureMedium) {
		return types.DirectiveProbe, "depth expert recommends probing and time allows"
	}

	return types.DirectiveProbe, "no conclusive observations; probing by default"
}

// llmDecision asks the model to synthesize the collected observations into
// a decision. Output must contain DECISION: and REASONING: lines; parsing
// is lenient.
func (c *Coordinator) llmDecision(resp types.StudentResponse, obs map[string]types.AgentObservation) (types.DirectiveKind, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), synthesisTimeout)
	defer cancel()

	out, err := c.provider.Complete(ctx, llm.Request{
		System:      synthesisSystemPrompt,
		User:        c.synthesisPrompt(resp, obs),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", "", err
	}
	return parseDecision(out)
}

const synthesisSystemPrompt = "You coordinate a spoken book-report interview. Given the specialist observations, decide the single next action. Reply with exactly two lines: 'DECISION: <PROBE|TRANSITION|FINAL_QUESTION|END_INTERVIEW>' and 'REASONING: <one sentence>'."

func (c *Coordinator) synthesisPrompt(resp types.StudentResponse, obs map[string]types.AgentObservation) string {
	topic, _ := c.registry.Get(resp.Topic)

	var sb strings.Builder
	for _, agent := range agentIDs(obs) {
		switch payload := obs[agent].Payload.(type) {
		case types.TimeObservation:
			fmt.Fprintf(&sb, "- timekeeper: %.0fs remaining, %d topics left, pressure=%s, advice=%s\n",
				payload.RemainingSeconds, payload.TopicsLeft, payload.Pressure, payload.Recommendation)
		case types.DepthObservation:
			fmt.Fprintf(&sb, "- depth_expert: rating=%d/3, recommendation=%s, frustration=%v, note=%s\n",
				payload.Rating, payload.Recommendation, payload.FrustrationDetected, payload.Note)
		case types.GradeObservation:
			fmt.Fprintf(&sb, "- grader: running grade %s (avg %.2f over %d topics)\n",
				payload.RunningGrade, payload.NumericAverage, payload.TopicsScored)
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("(no observations arrived in time)\n")
	}

	return heredoc.Docf(`
		Current topic: %s

		Student's latest response:
		%s

		Specialist observations:
		%s
		PROBE digs deeper on the current topic. TRANSITION moves to the next
		topic. FINAL_QUESTION asks one quick last question under time
		pressure. END_INTERVIEW wraps up.`,
		topic.Name, resp.Text, sb.String())
}

// parseDecision extracts the DECISION and REASONING lines, tolerating case
// differences, extra prose, and markdown fences.
func parseDecision(out string) (types.DirectiveKind, string, error) {
	var kind types.DirectiveKind
	var reasoning string

	for _, line := range strings.Split(llm.StripFences(out), "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "DECISION:"):
			label := strings.TrimSpace(strings.TrimPrefix(upper, "DECISION:"))
			switch {
			case strings.HasPrefix(label, "PROBE"):
				kind = types.DirectiveProbe
			case strings.HasPrefix(label, "TRANSITION"):
				kind = types.DirectiveTransition
			case strings.HasPrefix(label, "FINAL_QUESTION"):
				kind = types.DirectiveFinalQuestion
			case strings.HasPrefix(label, "END_INTERVIEW"):
				kind = types.DirectiveEndInterview
			}
		case strings.HasPrefix(upper, "REASONING:"):
			reasoning = strings.TrimSpace(trimmed[len("REASONING:"):])
		}
	}

	if kind == "" {
		return "", "", fmt.Errorf("no valid DECISION label in output: %q", out)
	}
	if reasoning == "" {
		reasoning = "LLM synthesis"
	}
	return kind, reasoning, nil
}

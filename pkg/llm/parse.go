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
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes an optional markdown code fence wrapper from model
// output. "```json {...} ```" and "```{...}```" both yield the inner text.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop a language tag like "json" on the opening fence.
	if idx := strings.IndexAny(trimmed, "\n {["); idx > 0 {
		tag := strings.TrimSpace(trimmed[:idx])
		if tag != "" && !strings.ContainsAny(tag, "{}[]") {
			trimmed = trimmed[idx:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// ParseObject extracts the first JSON object from model output and
// unmarshals it into v. Tolerates code fences and surrounding prose.
func ParseObject(s string, v any) error {
	cleaned := StripFences(s)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in output")
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse JSON object: %w", err)
	}
	return nil
}

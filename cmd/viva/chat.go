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
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/viva-labs/viva/internal/log"
	"github.com/viva-labs/viva/pkg/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run an interview on the terminal",
	Long: heredoc.Doc(`
		Starts a full interview session and conducts it over stdin/stdout.
		Each line you type is one spoken student response; the interviewer's
		questions are printed as they are asked. The session ends when the
		coordinator ends it or on EOF.
	`),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sys, err := buildSystem(cfg, log.Logger())
		if err != nil {
			return err
		}
		defer sys.shutdown()

		sub, err := sys.bus.Subscribe("terminal", types.TopicQuestionAsked)
		if err != nil {
			return err
		}
		defer func() { _ = sys.bus.Unsubscribe(sub.ID) }()

		go func() {
			for msg := range sub.C {
				if ev, ok := msg.Event.(types.QuestionAsked); ok {
					fmt.Printf("\ninterviewer> %s\n> ", ev.Question)
				}
			}
		}()

		if _, err := sys.state.Start(); err != nil {
			return err
		}
		fmt.Println("Interview started. Type your answers; Ctrl-D to quit.")

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if err := sys.state.RecordResponse("", text); err != nil {
				// The coordinator ended the interview between prompts.
				break
			}
		}
		printReport(sys)
		return scanner.Err()
	},
}

func printReport(sys *system) {
	snap := sys.state.Snapshot()
	fmt.Printf("\n--- interview %s ---\n", snap.Status)
	fmt.Printf("topics completed: %d\n", snap.TopicsCompleted)
	for topic, score := range snap.TopicScores {
		fmt.Printf("  %s: %d/3\n", topic, score)
	}
}

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
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/viva-labs/viva/internal/log"
	"github.com/viva-labs/viva/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "viva",
	Short: "Multi-agent spoken book-report interviewer",
	Long: heredoc.Doc(`
		Viva runs a time-bounded book-report interview. A coordinator
		synthesizes observations from a timekeeper, a grader, and a depth
		expert into one directive per student response, and an interviewer
		turns directives into spoken questions.

		Set ANTHROPIC_API_KEY to enable LLM-backed evaluation and question
		generation; without it every agent degrades to its deterministic
		fallback and the interview still completes.
	`),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return log.Init(viper.GetString("logging.level"), viper.GetString("logging.format"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./viva.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd, chatCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the viva version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get())
	},
}

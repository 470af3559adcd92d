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
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/viva-labs/viva/internal/log"
	"github.com/viva-labs/viva/pkg/agents"
	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/coordinator"
	"github.com/viva-labs/viva/pkg/interview"
	"github.com/viva-labs/viva/pkg/llm"
	"github.com/viva-labs/viva/pkg/llm/anthropic"
	"github.com/viva-labs/viva/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview system with its HTTP/WebSocket API",
	Long: heredoc.Doc(`
		Starts the message bus, the agent roster, the coordinator, and the
		HTTP server, then blocks until interrupted. The UI drives the
		interview through POST /api/interview/{start,respond,reset} and
		watches it on /ws.
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

		errCh := make(chan error, 1)
		go func() {
			errCh <- sys.server.Run(cfg.ServerAddr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("shutting down", zap.String("signal", sig.String()))
			return nil
		case err := <-errCh:
			return err
		}
	},
}

// system holds the wired interview runtime.
type system struct {
	bus    *bus.Bus
	state  *interview.State
	ticker *interview.Ticker
	sup    *agents.Supervisor
	server *server.Server
	logger *zap.Logger
}

// buildSystem wires every component in startup order: bus, content,
// state, ticker, agents, coordinator, server. The supervisor starts the
// agents before the server accepts traffic so no student response can
// arrive without a full roster listening.
func buildSystem(cfg Config, logger *zap.Logger) (*system, error) {
	b := bus.New(logger)

	reg, err := content.NewRegistry()
	if err != nil {
		return nil, err
	}

	state := interview.NewState(b, reg, logger)

	ticker := interview.NewTicker(b, logger,
		interview.WithTickPeriod(cfg.TickPeriod),
		interview.WithTickGate(state.InProgress))
	state.SetTicker(ticker)

	var provider llm.Provider
	if client, ok := anthropic.FromEnv(cfg.Model); ok {
		provider = client
		logger.Info("LLM provider enabled", zap.String("model", client.Model()))
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, running on deterministic fallbacks")
	}

	sup := agents.NewSupervisor(b, logger)
	sup.Add(agents.NewTimekeeper(b, logger, agents.WithTimeBudget(cfg.TotalSeconds)))
	sup.Add(agents.NewGrader(b, reg, logger))
	sup.Add(agents.NewDepthExpert(b, reg, provider, state.Epoch, logger))
	sup.Add(agents.NewInterviewer(b, reg, state, provider, logger))
	sup.Add(coordinator.New(b, reg, state, provider, logger, coordinator.WithWindow(cfg.WindowDuration)))

	if err := sup.Start(); err != nil {
		_ = b.Close()
		return nil, err
	}

	return &system{
		bus:    b,
		state:  state,
		ticker: ticker,
		sup:    sup,
		server: server.New(b, state, logger),
		logger: logger,
	}, nil
}

func (s *system) shutdown() {
	s.ticker.Stop()
	s.sup.Stop()
	if err := s.bus.Close(); err != nil {
		s.logger.Warn("bus close failed", zap.Error(err))
	}
	_ = s.logger.Sync()
}

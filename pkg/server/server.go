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

// Package server is the HTTP/WebSocket bridge between the interview core
// and a UI. The UI drives the session with three commands (start, respond,
// reset) and watches it through a websocket stream of bus topics.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/viva-labs/viva/internal/version"
	"github.com/viva-labs/viva/pkg/bus"
	"github.com/viva-labs/viva/pkg/content"
	"github.com/viva-labs/viva/pkg/interview"
	"github.com/viva-labs/viva/pkg/types"
)

const wsWriteTimeout = 5 * time.Second

// uiTopics is the stream exposed to websocket clients.
var uiTopics = []string{
	types.TopicEvents,
	types.TopicQuestionAsked,
	types.TopicAgentObservation,
	types.TopicCoordinatorDirective,
	types.TopicTick,
}

// Server exposes the interview over HTTP.
type Server struct {
	engine   *gin.Engine
	bus      *bus.Bus
	state    *interview.State
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates the HTTP server and registers its routes.
func New(b *bus.Bus, state *interview.State, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine: gin.New(),
		bus:    b,
		state:  state,
		logger: logger,
		upgrader: websocket.Upgrader{
			// The UI is served from anywhere during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/ws", s.handleWebSocket)

	api := s.engine.Group("/api/interview")
	api.POST("/start", s.handleStart)
	api.POST("/respond", s.handleRespond)
	api.POST("/reset", s.handleReset)
	api.GET("/snapshot", s.handleSnapshot)

	return s
}

// Router returns the HTTP handler, for embedding and tests.
func (s *Server) Router() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	if err := s.engine.Run(addr); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
}

func (s *Server) handleStart(c *gin.Context) {
	snap, err := s.state.Start()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": snap})
}

type respondRequest struct {
	Topic content.TopicID `json:"topic"`
	Text  string          `json:"text" binding:"required"`
}

func (s *Server) handleRespond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.state.RecordResponse(req.Topic, req.Text); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (s *Server) handleReset(c *gin.Context) {
	s.state.Reset()
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"snapshot": s.state.Snapshot()})
}

// wsEnvelope is one streamed bus message.
type wsEnvelope struct {
	ID        string      `json:"id"`
	Topic     string      `json:"topic"`
	From      string      `json:"from"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      string      `json:"kind"`
	Event     types.Event `json:"event"`
}

// handleWebSocket streams the UI topics to one client. A slow or broken
// socket is dropped; it never blocks the bus.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := fmt.Sprintf("ui-%s", uuid.NewString())
	sub, err := s.bus.Subscribe(clientID, uiTopics...)
	if err != nil {
		s.logger.Warn("websocket subscribe failed", zap.Error(err))
		_ = conn.Close()
		return
	}

	s.logger.Info("websocket client connected", zap.String("client", clientID))

	done := make(chan struct{})

	// Reader: only watches for the client going away.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			_ = s.bus.Unsubscribe(sub.ID)
			_ = conn.Close()
			s.logger.Info("websocket client disconnected", zap.String("client", clientID))
		}()

		for {
			select {
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				envelope := wsEnvelope{
					ID:        msg.ID,
					Topic:     msg.Topic,
					From:      msg.From,
					Timestamp: msg.Timestamp,
					Kind:      msg.Event.Kind(),
					Event:     msg.Event,
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(envelope); err != nil {
					s.logger.Debug("websocket write failed, dropping client",
						zap.String("client", clientID), zap.Error(err))
					return
				}
			case <-done:
				return
			}
		}
	}()
}

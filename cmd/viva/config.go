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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	ServerAddr     string
	TotalSeconds   float64
	WindowDuration time.Duration
	TickPeriod     time.Duration
	Model          string
}

func initConfig() error {
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("interview.total_seconds", 300)
	viper.SetDefault("coordinator.window_ms", 800)
	viper.SetDefault("ticker.period_seconds", 10)
	viper.SetDefault("llm.model", "")

	viper.SetEnvPrefix("VIVA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("viva")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/viva")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func loadConfig() (Config, error) {
	cfg := Config{
		ServerAddr:     viper.GetString("server.addr"),
		TotalSeconds:   viper.GetFloat64("interview.total_seconds"),
		WindowDuration: time.Duration(viper.GetInt("coordinator.window_ms")) * time.Millisecond,
		TickPeriod:     time.Duration(viper.GetInt("ticker.period_seconds")) * time.Second,
		Model:          viper.GetString("llm.model"),
	}
	if cfg.TotalSeconds <= 0 {
		return cfg, fmt.Errorf("interview.total_seconds must be positive, got %v", cfg.TotalSeconds)
	}
	if cfg.WindowDuration <= 0 {
		return cfg, fmt.Errorf("coordinator.window_ms must be positive, got %v", cfg.WindowDuration)
	}
	if cfg.TickPeriod < time.Second {
		return cfg, fmt.Errorf("ticker.period_seconds must be at least 1, got %v", cfg.TickPeriod)
	}
	return cfg, nil
}

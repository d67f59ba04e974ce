// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command livechat-watch connects to a live chat backend, starts a
// session and streams state snapshots to the terminal. It exists both as
// a debugging tool and as the reference consumer of the livechat package.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aiku/livechat-go/pkg/livechat"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configFile  string
	sendMessage string
	autoConnect bool
)

var rootCmd = &cobra.Command{
	Use:     "livechat-watch",
	Short:   "Stream live chat state snapshots",
	Version: fmt.Sprintf("%s (%s, built %s)", Tag, Commit, BuildTime),
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default ./livechat.yaml)")
	rootCmd.Flags().StringVar(&sendMessage, "send", "", "send one message after connecting")
	rootCmd.Flags().BoolVar(&autoConnect, "auto-connect", true, "connect immediately after starting the session")
}

func loadConfig() (livechat.Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("livechat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("LIVECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("poll_interval", livechat.DefaultPollInterval)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return livechat.Config{}, err
		}
	}

	var cfg livechat.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return livechat.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return livechat.Config{}, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	transport := livechat.NewWSTransport(cfg, log)
	client := livechat.New(cfg, transport, log)
	defer func() {
		if err := client.Dispose(); err != nil {
			log.Warn().Err(err).Msg("Dispose failed")
		}
	}()

	if err := transport.Connect(ctx); err != nil {
		return err
	}
	if err := client.Init(ctx); err != nil {
		return err
	}
	if err := client.StartSession(ctx, autoConnect); err != nil {
		return err
	}

	sub, err := client.Subscribe()
	if err != nil {
		return err
	}
	defer sub.Cancel()

	if sendMessage != "" {
		if err := client.SendMessage(ctx, sendMessage); err != nil {
			return err
		}
	}

	diag := client.Publisher().Diagnostics()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-diag:
			log.Warn().Err(d.Err).Str("op", string(d.Op)).Msg("Poll diagnostic")
		case state, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			printState(state)
		}
	}
}

func printState(s *livechat.ProviderState) {
	agents := make([]string, 0, len(s.Agents))
	for _, a := range s.Agents {
		name := a.DisplayName
		if a.IsTyping {
			name += " (typing)"
		}
		agents = append(agents, name)
	}
	fmt.Printf("connection=%s session=%s queue=%d unread=%d agents=[%s]\n",
		s.ConnectionStatus, s.SessionStatus, s.QueuePosition, s.UnreadCount,
		strings.Join(agents, ", "))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

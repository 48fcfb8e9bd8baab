// Copyright 2026 Teradata
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
// Command loomrelay starts the multi-agent orchestration runtime's HTTP/WS
// server, grounded in cmd/looms/cmd_serve.go's flag-bind/connect/listen/
// graceful-shutdown shape (§6.1).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/app"
	"github.com/teradata-labs/loomrelay/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "loomrelay:", err)
		os.Exit(1)
	}
}

func run() error {
	var session, cwd string
	pflag.StringVar(&session, "session", "", "resume an existing orchestrator by session token")
	pflag.StringVar(&cwd, "cwd", "", "override the orchestrator's working directory")
	pflag.Parse()

	v := viper.New()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ResumeSession = session
	cfg.WorkingDir = resolveWorkingDir(cwd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.Log.Info("loomrelay listening", zap.String("addr", addr), zap.String("cwd", cfg.WorkingDir))

	// Start blocks until ctx is cancelled (by the signal handler above),
	// at which point it shuts the listener down gracefully and returns.
	return a.Start(ctx, addr)
}

// resolveWorkingDir applies the --cwd flag, then the ORCHESTRATOR_CWD env
// var, then the process's own working directory, per §6.1's CLI flags.
func resolveWorkingDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("ORCHESTRATOR_CWD"); env != "" {
		return env
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

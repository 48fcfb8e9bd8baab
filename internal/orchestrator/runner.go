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
// Package orchestrator implements the three-phase turn pipeline (§4.7)
// shared by the orchestrator's own chat turns and every worker agent's
// command_agent turns, grounded in internal/agent.Coordinator's
// Run/IsBusy/Interrupt shape and internal/app's top-level wiring style.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/teradata-labs/loomrelay/internal/agent"
	"github.com/teradata-labs/loomrelay/internal/llmsdk"
)

// Sink receives the side effects of one streamed turn: usage, the session
// token captured from the opening system message, and each assistant
// block, so the caller can persist them into the right table (orchestrator
// chat vs an agent's agent_logs) without the Runner knowing which.
type Sink interface {
	OnSessionToken(ctx context.Context, token string) error
	OnUsage(ctx context.Context, inputTokens, outputTokens int64, costUSD float64) error
	OnText(ctx context.Context, text string) error
	OnThinking(ctx context.Context, text string) error
	OnToolUse(ctx context.Context, name string, input map[string]any, id string) error
}

// SystemMessageObserver is an optional extension of Sink for callers that
// care about the raw opening system message (§4.7 execution step 5's
// "capture once per process ... merge into orchestrator metadata" bullet).
// Only the orchestrator's own Pipeline implements this; worker-agent sinks
// have no use for it, so it is not part of Sink itself.
type SystemMessageObserver interface {
	OnSystemMessage(ctx context.Context, msg *llmsdk.SystemMessage) error
}

// Config fixes one Runner's target: which model/system prompt/working
// directory a turn runs against, and where its side effects land.
type Config struct {
	SDK          llmsdk.Client
	Model        string
	SystemPrompt string
	WorkingDir   string
	Hooks        llmsdk.Hooks
	Sink         Sink

	// Tools and Execute bind the orchestrator's management tools (§4.6) to
	// this Runner's turns; both are empty for worker-agent Runners.
	Tools   []llmsdk.ToolSpec
	Execute llmsdk.ToolExecutor
}

// Runner implements agent.Coordinator for one owner (the orchestrator, or
// a single worker agent). Per §4.6, worker agents get a fresh Runner per
// command_agent call ("fresh-instance-per-call to avoid shared mutable
// state"); the orchestrator's Pipeline also builds a fresh Runner for each
// user turn and keeps the latest one, so the next message can check IsBusy
// on the turn before it and interrupt it.
type Runner struct {
	cfg Config

	mu     sync.Mutex
	busy   bool
	cancel context.CancelFunc
}

// NewRunner builds a Runner against cfg.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

var _ agent.Coordinator = (*Runner)(nil)

// Run executes one turn: opens a stream, pumps messages into the sink,
// and blocks until the stream's terminal result (or an interrupt) closes
// it. Only one turn may run at a time per Runner.
func (r *Runner) Run(ctx context.Context, sessionToken, prompt string) error {
	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return fmt.Errorf("runner: turn already in progress")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.busy = true
	r.cancel = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.busy = false
		r.cancel = nil
		r.mu.Unlock()
	}()

	stream, err := r.cfg.SDK.Stream(ctx, prompt, llmsdk.StreamOptions{
		SessionToken: sessionToken,
		SystemPrompt: r.cfg.SystemPrompt,
		Model:        r.cfg.Model,
		WorkingDir:   r.cfg.WorkingDir,
		Hooks:        r.cfg.Hooks,
		Tools:        r.cfg.Tools,
		Execute:      r.cfg.Execute,
	})
	if err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	for msg := range stream.Messages() {
		if perr := r.pump(ctx, msg); perr != nil {
			stream.Interrupt()
			return perr
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return agent.ErrInterrupted
		}
		return err
	}
	return nil
}

func (r *Runner) pump(ctx context.Context, msg llmsdk.StreamMessage) error {
	switch m := msg.(type) {
	case *llmsdk.SystemMessage:
		if r.cfg.Sink == nil {
			return nil
		}
		if m.SessionID != "" {
			if err := r.cfg.Sink.OnSessionToken(ctx, m.SessionID); err != nil {
				return err
			}
		}
		if obs, ok := r.cfg.Sink.(SystemMessageObserver); ok {
			return obs.OnSystemMessage(ctx, m)
		}
	case *llmsdk.AssistantMessage:
		for _, block := range m.Blocks {
			if err := r.pumpBlock(ctx, block); err != nil {
				return err
			}
		}
	case *llmsdk.ResultMessage:
		if r.cfg.Sink != nil {
			cost := 0.0
			if m.TotalCostUSD != nil {
				cost = *m.TotalCostUSD
			}
			return r.cfg.Sink.OnUsage(ctx, int64(m.InputTokens), int64(m.OutputTokens), cost)
		}
	}
	return nil
}

func (r *Runner) pumpBlock(ctx context.Context, block llmsdk.AssistantBlock) error {
	if r.cfg.Sink == nil {
		return nil
	}
	switch b := block.(type) {
	case llmsdk.TextBlock:
		return r.cfg.Sink.OnText(ctx, b.Text)
	case llmsdk.ThinkingBlock:
		return r.cfg.Sink.OnThinking(ctx, b.Text)
	case llmsdk.ToolUseBlock:
		return r.cfg.Sink.OnToolUse(ctx, b.Name, b.Input, b.ID)
	}
	return nil
}

// IsBusy reports whether a turn is currently in flight.
func (r *Runner) IsBusy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Interrupt cancels the in-flight turn, if any. Safe to call when idle.
func (r *Runner) Interrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

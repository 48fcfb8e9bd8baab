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
// Package summarizer produces short fast-model summaries of agent log
// events, fire-and-forget, the way pkg/server/health.go's ValidateProviders
// bounds every provider call with its own timeout and swallows individual
// failures rather than letting one bad provider take the whole check down.
package summarizer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/llmsdk"
)

const (
	defaultTimeout  = 10 * time.Second
	summaryMaxChars = 240
)

// Client produces one-line summaries of agent log content using the
// configured fast model. It satisfies hooks.Summarizer.
type Client struct {
	sdk       llmsdk.Client
	fastModel string
	timeout   time.Duration
	log       *zap.Logger
}

// New builds a summarizer Client.
func New(sdk llmsdk.Client, fastModel string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{sdk: sdk, fastModel: fastModel, timeout: defaultTimeout, log: log}
}

// SummarizeAsync spawns a bounded-timeout summary request and invokes
// onDone with the result. Any failure is logged and swallowed: a missing
// summary must never fail the hook that triggered it.
func (c *Client) SummarizeAsync(eventType, content string, onDone func(summary string)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		summary, err := c.summarize(ctx, eventType, content)
		if err != nil {
			c.log.Warn("summarize failed", zap.String("event_type", eventType), zap.Error(err))
			return
		}
		if summary == "" {
			return
		}
		onDone(summary)
	}()
}

func (c *Client) summarize(ctx context.Context, eventType, content string) (string, error) {
	prompt := fmt.Sprintf("Summarize this %s event in one short sentence:\n\n%s", eventType, truncate(content, summaryMaxChars*4))

	stream, err := c.sdk.Stream(ctx, prompt, llmsdk.StreamOptions{Model: c.fastModel})
	if err != nil {
		return "", fmt.Errorf("start summary stream: %w", err)
	}

	var summary string
	for msg := range stream.Messages() {
		if am, ok := msg.(*llmsdk.AssistantMessage); ok {
			for _, block := range am.Blocks {
				if tb, ok := block.(llmsdk.TextBlock); ok {
					summary += tb.Text
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return truncate(summary, summaryMaxChars), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

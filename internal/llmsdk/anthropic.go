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
package llmsdk

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// AnthropicConfig configures the real adapter.
type AnthropicConfig struct {
	APIKey    string
	MaxTokens int64 // default 4096
	Timeout   time.Duration
}

// anthropicClient is the real Client implementation, thinly wrapping
// anthropic-sdk-go's streaming Messages API.
type anthropicClient struct {
	sdk       anthropic.Client
	maxTokens int64
	timeout   time.Duration
	log       *zap.Logger
}

// NewAnthropicClient builds a Client backed by the real Anthropic API.
func NewAnthropicClient(cfg AnthropicConfig, log *zap.Logger) Client {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &anthropicClient{
		sdk:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		log:       log,
	}
}

type anthropicStream struct {
	ch     chan StreamMessage
	cancel context.CancelFunc
	mu     sync.Mutex
	err    error
}

func (s *anthropicStream) Messages() <-chan StreamMessage { return s.ch }

func (s *anthropicStream) Interrupt() { s.cancel() }

func (s *anthropicStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *anthropicStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (c *anthropicClient) Stream(ctx context.Context, prompt string, opts StreamOptions) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	out := &anthropicStream{ch: make(chan StreamMessage, 16), cancel: cancel}

	model := opts.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}
	if len(opts.Tools) > 0 {
		params.Tools = toolUnions(opts.Tools)
	}

	go c.pump(ctx, cancel, out, params, opts)

	return out, nil
}

// toolUnions converts this service's ToolSpec list into the SDK's
// ToolUnionParam shape, grounded in bedrock.SDKClient.convertToolsToSDK's
// marshal-through-JSON approach to populating ToolInputSchemaParam.
func toolUnions(specs []ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		tool := anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
		}
		if s.InputSchema != nil {
			raw, _ := json.Marshal(s.InputSchema)
			var schema anthropic.ToolInputSchemaParam
			_ = json.Unmarshal(raw, &schema)
			tool.InputSchema = schema
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

// pump drives the turn to completion, looping through tool-call rounds
// (model turn -> tool execution -> tool_result feedback) the way
// pkg/agent.Agent.Chat's MaxTurns loop does, until the model stops
// requesting tools, MaxToolTurns is hit, or an error occurs.
func (c *anthropicClient) pump(ctx context.Context, cancel context.CancelFunc, out *anthropicStream, params anthropic.MessageNewParams, opts StreamOptions) {
	defer cancel()
	defer close(out.ch)

	start := time.Now()

	if opts.Hooks.UserPromptSubmit != nil {
		if err := opts.Hooks.UserPromptSubmit(ctx, params.Messages[0].Content[0].OfText.Text); err != nil {
			out.setErr(err)
			return
		}
	}

	out.ch <- &SystemMessage{
		SessionID: opts.SessionToken,
		Cwd:       opts.WorkingDir,
		Model:     string(params.Model),
		Subtype:   "init",
	}

	maxToolTurns := opts.MaxToolTurns
	if maxToolTurns <= 0 {
		maxToolTurns = 10
	}

	var totalInput, totalOutput int64
	var totalCost float64
	reason := "end_turn"
	round := 0

	for {
		round++
		acc := anthropic.Message{}
		var blocks []AssistantBlock
		var toolCalls []ToolUseBlock

		stream := c.sdk.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				out.setErr(err)
				return
			}

			if variant, ok := event.AsAny().(anthropic.ContentBlockStopEvent); ok {
				idx := int(variant.Index)
				if idx < 0 || idx >= len(acc.Content) {
					continue
				}
				block := blockFromAccumulated(acc.Content[idx])
				if block == nil {
					continue
				}
				blocks = append(blocks, block)
				if tu, ok := block.(ToolUseBlock); ok {
					toolCalls = append(toolCalls, tu)
				}
			}
		}
		if err := stream.Err(); err != nil {
			out.setErr(err)
			if opts.Hooks.Stop != nil {
				_ = opts.Hooks.Stop(ctx, "error", round, time.Since(start).Milliseconds())
			}
			return
		}

		totalInput += acc.Usage.InputTokens
		totalOutput += acc.Usage.OutputTokens
		totalCost += estimateCostUSD(acc.Usage)

		if len(blocks) > 0 {
			out.ch <- &AssistantMessage{Blocks: blocks}
		}

		if len(toolCalls) == 0 || opts.Execute == nil || round >= maxToolTurns {
			if len(toolCalls) > 0 && round >= maxToolTurns {
				reason = "max_tool_turns"
			}
			break
		}

		params.Messages = append(params.Messages, acc.ToParam())

		results := make([]anthropic.ContentBlockParamUnion, 0, len(toolCalls))
		for _, tu := range toolCalls {
			if opts.Hooks.PreTool != nil {
				if err := opts.Hooks.PreTool(ctx, tu.Name, tu.Input, tu.ID); err != nil {
					out.setErr(err)
					return
				}
			}
			result, isError := opts.Execute(ctx, tu.Name, tu.Input)
			if opts.Hooks.PostTool != nil {
				if err := opts.Hooks.PostTool(ctx, tu.Name, result, isError, tu.ID); err != nil {
					out.setErr(err)
					return
				}
			}
			results = append(results, anthropic.NewToolResultBlock(tu.ID, result, isError))
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(results...))
	}

	out.ch <- &ResultMessage{
		SessionID:    opts.SessionToken,
		TotalCostUSD: &totalCost,
		InputTokens:  int(totalInput),
		OutputTokens: int(totalOutput),
	}

	if opts.Hooks.Stop != nil {
		if err := opts.Hooks.Stop(ctx, reason, round, time.Since(start).Milliseconds()); err != nil {
			out.setErr(err)
		}
	}
}

func blockFromAccumulated(block anthropic.ContentBlockUnion) AssistantBlock {
	switch b := block.AsAny().(type) {
	case anthropic.TextBlock:
		return TextBlock{Text: b.Text}
	case anthropic.ThinkingBlock:
		return ThinkingBlock{Text: b.Thinking}
	case anthropic.ToolUseBlock:
		input, _ := b.Input.(map[string]any)
		return ToolUseBlock{ID: b.ID, Name: b.Name, Input: input}
	default:
		return nil
	}
}

// estimateCostUSD is a coarse fallback for when the stream carries no
// top-level total_cost_usd (the Anthropic messages API does not return
// one); the real per-session dollar figure is computed downstream by the
// cost tracker's pricing table (§4.4.4), which is the authoritative source.
func estimateCostUSD(u anthropic.Usage) float64 {
	const sonnetInputPer1M = 3.00
	const sonnetOutputPer1M = 15.00
	return float64(u.InputTokens)/1_000_000*sonnetInputPer1M + float64(u.OutputTokens)/1_000_000*sonnetOutputPer1M
}

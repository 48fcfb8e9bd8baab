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
// Package llmsdk defines the minimal surface this service consumes from a
// streaming LLM client, plus a real adapter over anthropic-sdk-go and a fake
// used by tests. The SDK itself is out of scope; only this interface is.
package llmsdk

import "context"

// AssistantBlock is one block of an assistant message: text, thinking, or a
// tool invocation.
type AssistantBlock interface{ isAssistantBlock() }

// TextBlock is a chunk of assistant-authored prose.
type TextBlock struct{ Text string }

// ThinkingBlock is an extended-thinking chunk.
type ThinkingBlock struct{ Text string }

// ToolUseBlock is one tool invocation requested by the model.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

func (TextBlock) isAssistantBlock()    {}
func (ThinkingBlock) isAssistantBlock() {}
func (ToolUseBlock) isAssistantBlock()  {}

// StreamMessage is one message out of a turn's stream: a system message
// (once), zero or more assistant messages, and a closing result message.
type StreamMessage interface{ isStreamMessage() }

// SystemMessage carries the session's environment, captured once per
// process (spec §4.7 execution step 5's "System message" bullet).
type SystemMessage struct {
	SessionID string
	Cwd       string
	Tools     []string
	Model     string
	Subtype   string
}

// AssistantMessage carries one or more assistant blocks.
type AssistantMessage struct {
	Blocks []AssistantBlock
}

// ResultMessage closes a turn, carrying usage and cost.
type ResultMessage struct {
	SessionID     string
	TotalCostUSD  *float64
	InputTokens   int
	OutputTokens  int
}

func (*SystemMessage) isStreamMessage()    {}
func (*AssistantMessage) isStreamMessage() {}
func (*ResultMessage) isStreamMessage()    {}

// Hooks are the lifecycle callbacks a stream invokes (spec §4.3). Any
// non-nil hook is called synchronously from the pump goroutine; the
// Anthropic pump treats a non-nil error from UserPromptSubmit, PreTool,
// PostTool or the end-of-turn Stop as fatal for the turn, matching the hook
// runtime's persistence-is-fatal contract. FakeClient ignores hook errors.
type Hooks struct {
	PreTool       func(ctx context.Context, toolName string, toolInput map[string]any, toolUseID string) error
	PostTool      func(ctx context.Context, toolName string, result string, isError bool, toolUseID string) error
	UserPromptSubmit func(ctx context.Context, prompt string) error
	Stop          func(ctx context.Context, reason string, numTurns int, durationMs int64) error
	SubagentStop  func(ctx context.Context, subagentID string) error
	PreCompact    func(ctx context.Context, tokensBefore int) error
}

// ToolSpec describes one tool the model may call: its name, the
// description shown to the model, and its input JSON schema (a standard
// "type: object, properties, required" document).
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolExecutor runs one tool call server-side and returns its result text
// plus whether it represents an error, so the adapter can feed a
// tool_result block back to the model and continue the turn.
type ToolExecutor func(ctx context.Context, name string, input map[string]any) (result string, isError bool)

// StreamOptions parameterizes one turn.
type StreamOptions struct {
	// SessionToken resumes a prior conversation when non-empty.
	SessionToken string
	SystemPrompt string
	Model        string
	WorkingDir   string
	Hooks        Hooks

	// Tools are the virtual tools bound to this turn (§9's management
	// tools for the orchestrator; empty for worker-agent turns). When
	// non-empty and Execute is set, the adapter loops the model through
	// tool calls and their results until it stops requesting tools or
	// MaxToolTurns is reached.
	Tools        []ToolSpec
	Execute      ToolExecutor
	MaxToolTurns int // default 10 when Tools is non-empty
}

// Stream is one open, in-flight turn.
type Stream interface {
	// Messages returns the channel of stream messages. It is closed when
	// the stream ends, whether cleanly, by error, or by Interrupt.
	Messages() <-chan StreamMessage

	// Interrupt cancels the stream. Safe to call multiple times and after
	// the stream has already ended.
	Interrupt()

	// Err returns the terminal error, if any, after Messages() closes.
	Err() error
}

// Client opens streaming turns against the LLM SDK.
type Client interface {
	Stream(ctx context.Context, prompt string, opts StreamOptions) (Stream, error)
}

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
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/llmsdk"
	"github.com/teradata-labs/loomrelay/internal/store"
)

const maxTruncatedResult = 500

// Summarizer is the subset of the summarizer client the hook runtime needs:
// a fire-and-forget background summary of a truncated event.
type Summarizer interface {
	SummarizeAsync(eventType, content string, onDone func(summary string))
}

// FileTracker is the subset of the file-change tracker the post-tool hook
// feeds (§4.3's classification step).
type FileTracker interface {
	Observe(toolName string, toolInput map[string]any)
}

// Hub is the subset of wshub.Hub the runtime broadcasts through.
type Hub interface {
	BroadcastAgentLog(category, eventType string, entryIndex int, payload any, summary *string)
}

// Runtime installs the six hook handlers for one agent task. A fresh
// Runtime is created per command_agent call, scoping the entry-index
// counter to that (agent, task_slug) pair (§5 "monotonically indexed by an
// atomic counter local to that task").
type Runtime struct {
	agentID     uuid.UUID
	taskSlug    string
	sessionID   string
	store       store.Store
	hub         Hub
	summarizer  Summarizer
	fileTracker FileTracker
	log         *zap.Logger

	mu          sync.Mutex
	pendingTool map[string]pendingToolCall
}

// pendingToolCall remembers a PreTool invocation's input until the matching
// PostTool arrives, since the SDK's post-tool hook callback carries only
// the result, not the original input the file tracker needs to classify
// the call (§4.3's classification table keys off tool_name + file_path).
type pendingToolCall struct {
	toolName  string
	toolInput map[string]any
}

// New builds a Runtime. fileTracker and summarizer may be nil.
func New(agentID uuid.UUID, taskSlug, sessionID string, st store.Store, hub Hub, summarizer Summarizer, fileTracker FileTracker, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{agentID: agentID, taskSlug: taskSlug, sessionID: sessionID, store: st, hub: hub, summarizer: summarizer, fileTracker: fileTracker, log: log, pendingTool: make(map[string]pendingToolCall)}
}

func (r *Runtime) persist(ctx context.Context, kind Kind, category store.LogCategory, content *string, payload store.Metadata) (*store.AgentLog, error) {
	idx, err := r.store.NextEntryIndex(ctx, r.agentID, r.taskSlug)
	if err != nil {
		return nil, fmt.Errorf("next entry index: %w", err)
	}
	sid := r.sessionID
	row, err := r.store.InsertAgentLog(ctx, &store.AgentLog{
		AgentID:       r.agentID,
		SessionID:     &sid,
		TaskSlug:      r.taskSlug,
		EntryIndex:    idx,
		EventCategory: category,
		EventType:     kind.String(),
		Content:       content,
		Payload:       payload,
	})
	if err != nil {
		return nil, fmt.Errorf("insert agent log: %w", err)
	}
	if r.hub != nil {
		r.hub.BroadcastAgentLog(string(category), kind.String(), idx, payload, row.Summary)
	}
	return row, nil
}

func (r *Runtime) scheduleSummary(row *store.AgentLog, eventType, content string) {
	if r.summarizer == nil || row == nil {
		return
	}
	r.summarizer.SummarizeAsync(eventType, content, func(summary string) {
		_ = r.store.UpdateAgentLogSummary(context.Background(), row.ID, summary)
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// PreTool persists a hook log row and schedules its summary. Errors
// propagate (fatal for the turn) per §4.3.
func (r *Runtime) PreTool(ctx context.Context, toolName string, toolInput map[string]any, toolUseID string) error {
	row, err := r.persist(ctx, PreTool, store.LogCategoryHook, nil, store.Metadata{
		"tool_name":   toolName,
		"tool_input":  toolInput,
		"tool_use_id": toolUseID,
	})
	if err != nil {
		return err
	}
	if toolUseID != "" {
		r.mu.Lock()
		r.pendingTool[toolUseID] = pendingToolCall{toolName: toolName, toolInput: toolInput}
		r.mu.Unlock()
	}
	r.scheduleSummary(row, PreTool.String(), fmt.Sprintf("%s %v", toolName, toolInput))
	return nil
}

// PostTool persists the truncated result, schedules its summary, and feeds
// the file tracker when one is attached.
func (r *Runtime) PostTool(ctx context.Context, toolName string, result string, isError bool, toolUseID string) error {
	truncated := truncate(result, maxTruncatedResult)
	row, err := r.persist(ctx, PostTool, store.LogCategoryHook, nil, store.Metadata{
		"tool_name":        toolName,
		"truncated_result": truncated,
		"is_error":         isError,
		"tool_use_id":      toolUseID,
	})
	if err != nil {
		return err
	}
	r.scheduleSummary(row, PostTool.String(), truncated)

	if r.fileTracker != nil && ClassifyTool(toolName) != CategoryIgnored {
		r.mu.Lock()
		pending, ok := r.pendingTool[toolUseID]
		delete(r.pendingTool, toolUseID)
		r.mu.Unlock()
		toolInput := map[string]any(nil)
		if ok {
			toolInput = pending.toolInput
		}
		r.fileTracker.Observe(toolName, toolInput)
	}
	return nil
}

// UserPromptSubmit persists the truncated prompt and its original length.
func (r *Runtime) UserPromptSubmit(ctx context.Context, prompt string) error {
	truncated := truncate(prompt, maxTruncatedResult)
	_, err := r.persist(ctx, UserPromptSubmit, store.LogCategoryHook, nil, store.Metadata{
		"truncated_prompt": truncated,
		"original_length":  len(prompt),
	})
	return err
}

// StopHandler persists the turn's closing reason/duration.
func (r *Runtime) StopHandler(ctx context.Context, reason string, numTurns int, durationMs int64) error {
	_, err := r.persist(ctx, Stop, store.LogCategoryHook, nil, store.Metadata{
		"reason":      reason,
		"num_turns":   numTurns,
		"duration_ms": durationMs,
	})
	return err
}

// SubagentStopHandler persists the subagent that stopped.
func (r *Runtime) SubagentStopHandler(ctx context.Context, subagentID string) error {
	_, err := r.persist(ctx, SubagentStop, store.LogCategoryHook, nil, store.Metadata{"subagent_id": subagentID})
	return err
}

// PreCompactHandler persists tokens_before and resets the agent's token
// counters, per §4.3's "persist and reset" contract.
func (r *Runtime) PreCompactHandler(ctx context.Context, tokensBefore int) error {
	if _, err := r.persist(ctx, PreCompact, store.LogCategoryHook, nil, store.Metadata{"tokens_before": tokensBefore}); err != nil {
		return err
	}
	return r.store.ResetAgentTokens(ctx, r.agentID)
}

// AsSDKHooks adapts this runtime into the llmsdk.Hooks shape a Stream
// invokes.
func (r *Runtime) AsSDKHooks() llmsdk.Hooks {
	return llmsdk.Hooks{
		PreTool:          r.PreTool,
		PostTool:         r.PostTool,
		UserPromptSubmit: r.UserPromptSubmit,
		Stop:             r.StopHandler,
		SubagentStop:     r.SubagentStopHandler,
		PreCompact:       r.PreCompactHandler,
	}
}

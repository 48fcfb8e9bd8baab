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
package agentmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/hooks"
	"github.com/teradata-labs/loomrelay/internal/orchestrator"
	"github.com/teradata-labs/loomrelay/internal/store"
)

// CommandAgent dispatches command to agentName asynchronously: it
// persists a prompt row and marks the agent executing synchronously, then
// returns the derived task slug immediately while the turn runs in the
// background (§4.6's command_agent contract).
func (m *Manager) CommandAgent(ctx context.Context, owner uuid.UUID, agentName, command string) (string, error) {
	a, err := m.st.GetAgentByName(ctx, owner, agentName)
	if err != nil {
		return "", fmt.Errorf("agentmgr: lookup agent %q: %w", agentName, err)
	}

	m.mu.Lock()
	if _, busy := m.active[agentName]; busy {
		m.mu.Unlock()
		return "", fmt.Errorf("agentmgr: agent %q is already executing a command", agentName)
	}
	m.mu.Unlock()

	slug := taskSlug(command, now())

	if _, err := m.st.InsertPrompt(ctx, &store.Prompt{
		AgentID:    a.ID,
		TaskSlug:   slug,
		Author:     store.PromptAuthorOrchestratorAgent,
		PromptText: command,
	}); err != nil {
		return "", fmt.Errorf("agentmgr: persist prompt: %w", err)
	}

	if err := m.st.UpdateAgentStatus(ctx, a.ID, store.StatusExecuting); err != nil {
		return "", fmt.Errorf("agentmgr: mark agent executing: %w", err)
	}

	sessionToken := ""
	if a.SessionID != nil {
		sessionToken = *a.SessionID
	}

	tracker := m.trackerFor(a.ID, a.WorkingDir)
	runtime := hooks.New(a.ID, slug, sessionToken, m.st, m.hub, m.summ, tracker, m.log)
	sink := &agentSink{st: m.st, hub: m.hub, economy: m.economy, agentID: a.ID, taskSlug: slug}

	runner := orchestrator.NewRunner(orchestrator.Config{
		SDK:          m.sdk,
		Model:        a.Model,
		SystemPrompt: a.SystemPrompt,
		WorkingDir:   a.WorkingDir,
		Hooks:        runtime.AsSDKHooks(),
		Sink:         sink,
	})

	m.mu.Lock()
	m.active[agentName] = &agentRun{runner: runner, taskSlug: slug}
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastAgentStatusChanged(agentName, string(store.StatusExecuting))
	}

	go m.runCommand(a, agentName, slug, sessionToken, command, runner, sink)

	return slug, nil
}

// runCommand executes the background turn and its closing status/file-
// tracking bookkeeping, regardless of success or failure (§4.6, §4.8).
func (m *Manager) runCommand(a *store.Agent, agentName, slug, sessionToken, command string, runner *orchestrator.Runner, sink *agentSink) {
	ctx := context.Background()
	runErr := runner.Run(ctx, sessionToken, command)

	m.mu.Lock()
	delete(m.active, agentName)
	m.mu.Unlock()

	status := store.StatusIdle
	if runErr != nil {
		status = store.StatusBlocked
		m.log.Warn("agent command failed", zap.String("agent", agentName), zap.String("task_slug", slug), zap.Error(runErr))
	}
	if err := m.st.UpdateAgentStatus(ctx, a.ID, status); err != nil {
		m.log.Warn("update agent status failed", zap.String("agent", agentName), zap.Error(err))
	}
	if m.hub != nil {
		m.hub.BroadcastAgentStatusChanged(agentName, string(status))
	}

	m.closeFileTracking(ctx, a.ID, sink)
}

// closeFileTracking computes the agent's file-change dossier, merges it
// into the last text-block response log, and broadcasts the synthetic
// FileTrackingBlock event (§4.8).
func (m *Manager) closeFileTracking(ctx context.Context, agentID uuid.UUID, sink *agentSink) {
	m.mu.Lock()
	tracker := m.trackers[agentID]
	m.mu.Unlock()
	if tracker == nil {
		return
	}

	readPaths := tracker.ReadPaths()
	modifiedPaths := tracker.ModifiedPaths()

	changes, err := tracker.Changes(ctx)
	if err != nil {
		m.log.Warn("file tracker changes failed", zap.String("agent_id", agentID.String()), zap.Error(err))
		return
	}
	tracker.Reset()
	if len(changes) == 0 && len(readPaths) == 0 {
		return
	}

	dossier := make([]map[string]any, 0, len(changes))
	for _, c := range changes {
		dossier = append(dossier, map[string]any{
			"path": c.Path, "status": string(c.Kind), "added": c.Added, "removed": c.Removed,
		})
	}
	payload := store.Metadata{"file_changes": dossier, "read_paths": readPaths, "modified_paths": modifiedPaths}

	lastID := sink.lastTextLogID()
	if lastID != uuid.Nil {
		if err := m.st.UpdateAgentLogPayload(ctx, lastID, payload); err != nil {
			m.log.Warn("merge file tracking dossier", zap.Error(err))
		}
	}
	if m.hub != nil {
		m.hub.BroadcastFileTracking(agentID.String(), payload)
	}
}

// agentSink implements orchestrator.Sink for a worker agent's command
// turn: text/thinking land as "response" category agent_logs sharing the
// hook runtime's per-task entry-index sequence; usage updates the agent's
// cumulative tokens/cost and, when economy tracking is enabled, the
// shared rate limiter. The cost tracker is not updated from worker turns.
type agentSink struct {
	st      store.Store
	hub     Hub
	economy Economy

	agentID  uuid.UUID
	taskSlug string

	mu     sync.Mutex
	lastID uuid.UUID
}

func (s *agentSink) lastTextLogID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

func (s *agentSink) OnSessionToken(ctx context.Context, token string) error {
	return s.st.UpdateAgentSession(ctx, s.agentID, token)
}

func (s *agentSink) OnUsage(ctx context.Context, inputTokens, outputTokens int64, costUSD float64) error {
	if _, _, err := s.st.UpdateAgentCosts(ctx, s.agentID, store.CostUpdate{InputTokens: inputTokens, OutputTokens: outputTokens, Cost: costUSD}); err != nil {
		return fmt.Errorf("update agent costs: %w", err)
	}
	if s.economy.Enabled && s.economy.Limiter != nil {
		s.economy.Limiter.RecordUsage(int(inputTokens + outputTokens))
	}
	return nil
}

func (s *agentSink) OnText(ctx context.Context, text string) error {
	idx, err := s.st.NextEntryIndex(ctx, s.agentID, s.taskSlug)
	if err != nil {
		return fmt.Errorf("next entry index: %w", err)
	}
	content := text
	row, err := s.st.InsertAgentLog(ctx, &store.AgentLog{
		AgentID:       s.agentID,
		TaskSlug:      s.taskSlug,
		EntryIndex:    idx,
		EventCategory: store.LogCategoryResponse,
		EventType:     "text",
		Content:       &content,
	})
	if err != nil {
		return fmt.Errorf("insert response log: %w", err)
	}
	s.mu.Lock()
	s.lastID = row.ID
	s.mu.Unlock()
	if s.hub != nil {
		s.hub.BroadcastAgentLog(string(store.LogCategoryResponse), "text", idx, map[string]any{"content": text}, row.Summary)
	}
	return nil
}

func (s *agentSink) OnThinking(ctx context.Context, text string) error {
	idx, err := s.st.NextEntryIndex(ctx, s.agentID, s.taskSlug)
	if err != nil {
		return fmt.Errorf("next entry index: %w", err)
	}
	content := text
	row, err := s.st.InsertAgentLog(ctx, &store.AgentLog{
		AgentID:       s.agentID,
		TaskSlug:      s.taskSlug,
		EntryIndex:    idx,
		EventCategory: store.LogCategoryResponse,
		EventType:     "thinking",
		Content:       &content,
	})
	if err != nil {
		return fmt.Errorf("insert thinking log: %w", err)
	}
	if s.hub != nil {
		s.hub.BroadcastAgentLog(string(store.LogCategoryResponse), "thinking", idx, map[string]any{"content": text}, row.Summary)
	}
	return nil
}

// OnToolUse is a no-op: tool invocations are already persisted by the
// hook runtime's pre_tool/post_tool handlers (§4.3), which run from the
// same turn via the SDK's hook callbacks.
func (s *agentSink) OnToolUse(ctx context.Context, name string, input map[string]any, id string) error {
	return nil
}

var _ orchestrator.Sink = (*agentSink)(nil)

// StatusReport is the check_agent_status tool's output (§4.6).
type StatusReport struct {
	Name         string
	Status       store.Status
	InputTokens  int64
	OutputTokens int64
	TotalCost    float64
	TaskSlug     string
	Tail         []*store.AgentLog
}

// CheckAgentStatus returns an agent's status/totals plus a raw or
// summarized tail of its latest task's log (§4.6).
func (m *Manager) CheckAgentStatus(ctx context.Context, owner uuid.UUID, agentName string, tailCount, offset int, verbose bool) (*StatusReport, error) {
	a, err := m.st.GetAgentByName(ctx, owner, agentName)
	if err != nil {
		return nil, fmt.Errorf("agentmgr: lookup agent %q: %w", agentName, err)
	}
	if tailCount <= 0 {
		tailCount = 10
	}

	slug, err := m.st.GetLatestTaskSlug(ctx, a.ID)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("agentmgr: latest task slug: %w", err)
	}

	var tail []*store.AgentLog
	if slug != "" {
		if verbose {
			tail, err = m.st.GetAgentLogTailRaw(ctx, a.ID, slug, tailCount, offset)
		} else {
			tail, err = m.st.GetAgentLogTailSummaries(ctx, a.ID, slug, tailCount, offset)
		}
		if err != nil {
			return nil, fmt.Errorf("agentmgr: agent log tail: %w", err)
		}
	}

	return &StatusReport{
		Name: a.Name, Status: a.Status, InputTokens: a.InputTokens, OutputTokens: a.OutputTokens,
		TotalCost: a.TotalCost, TaskSlug: slug, Tail: tail,
	}, nil
}

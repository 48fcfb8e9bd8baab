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
// Package agentmgr owns the set of worker agents spawned by the
// orchestrator and the eight management tools the orchestrator's LLM
// session binds to call them (§4.6). Grounded in
// pkg/server/spawn_agent.go's namespaced-spawn/spawn-limit-guard shape and
// pkg/server/agent_lifecycle.go's status-transition bookkeeping, both
// brought down from loom's gRPC/protobuf multi-agent server to this
// service's plain Go types and fresh-Runner-per-call turn model.
package agentmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/filetrack"
	"github.com/teradata-labs/loomrelay/internal/hooks"
	"github.com/teradata-labs/loomrelay/internal/llmsdk"
	"github.com/teradata-labs/loomrelay/internal/orchestrator"
	"github.com/teradata-labs/loomrelay/internal/store"
	"github.com/teradata-labs/loomrelay/internal/tokenecon"
)

// maxActiveAgentsPerOwner bounds fan-out the way spawn_agent.go's
// maxSpawnsPerParent prevents spawn bombs, adapted to this spec's flat
// (non-namespaced) worker-agent model.
const maxActiveAgentsPerOwner = 32

// Hub is the subset of wshub.Hub the manager broadcasts through.
type Hub interface {
	BroadcastAgentCreated(agent any)
	BroadcastAgentUpdated(agent any)
	BroadcastAgentDeleted(agentName string)
	BroadcastAgentStatusChanged(agentName, status string)
	BroadcastAgentLog(category, eventType string, entryIndex int, payload any, summary *string)
	BroadcastAgentSummaryUpdate(agentID, summary string)
	BroadcastSystemLog(level, message string)
	BroadcastFileTracking(agentID string, dossier any)
}

// Economy is the subset of token-economy components report_cost and the
// per-agent turn pipeline consult. Any field may be nil (feature flag
// off).
type Economy struct {
	Enabled          bool
	MaxContextTokens int
	Limiter          *tokenecon.RateLimiter
	Costs            *tokenecon.CostTracker
}

// Options configures a Manager.
type Options struct {
	PrimaryModel string
	FastModel    string
	TemplatesDir string // "<cwd>/.claude/agents"
	Economy      Economy
	Log          *zap.Logger
}

// Manager owns the set of currently-executing worker agents (§4.6's
// "active clients", keyed by agent name) plus their per-agent file
// trackers, behind one mutex.
type Manager struct {
	st   store.Store
	hub  Hub
	sdk  llmsdk.Client
	summ hooks.Summarizer
	log  *zap.Logger

	primaryModel, fastModel, templatesDir string
	economy                               Economy

	mu      sync.Mutex
	active  map[string]*agentRun // agent name -> in-flight run
	trackers map[uuid.UUID]*filetrack.Tracker
}

// agentRun is one in-flight command_agent call.
type agentRun struct {
	runner   *orchestrator.Runner
	taskSlug string
}

// New builds a Manager bound to one store/hub/llmsdk triple.
func New(st store.Store, hub Hub, sdk llmsdk.Client, summ hooks.Summarizer, opts Options) *Manager {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		st:           st,
		hub:          hub,
		sdk:          sdk,
		summ:         summ,
		log:          log,
		primaryModel: opts.PrimaryModel,
		fastModel:    opts.FastModel,
		templatesDir: opts.TemplatesDir,
		economy:      opts.Economy,
		active:       make(map[string]*agentRun),
		trackers:     make(map[uuid.UUID]*filetrack.Tracker),
	}
}

// resolveModel maps the create_agent tool's model aliases ("sonnet",
// "haiku", "fast") onto the configured model ids; any other non-empty
// string is used verbatim as a literal model id.
func (m *Manager) resolveModel(model string) string {
	switch model {
	case "", "sonnet":
		return m.primaryModel
	case "haiku", "fast":
		return m.fastModel
	default:
		return model
	}
}

func (m *Manager) trackerFor(agentID uuid.UUID, workingDir string) *filetrack.Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[agentID]
	if !ok {
		t = filetrack.New(workingDir)
		m.trackers[agentID] = t
	}
	return t
}

func (m *Manager) forgetTracker(agentID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trackers, agentID)
}

// CreateAgentParams are the create_agent tool's inputs (§4.6).
type CreateAgentParams struct {
	Name             string
	SystemPrompt     string
	Model            string
	SubagentTemplate string
	WorkingDir       string
	AllowedMCPs      []string
}

// CreateAgent validates uniqueness, resolves a template if given, persists
// the agent, and runs its initial greeting turn to capture a session
// token, per §4.6's create_agent contract.
func (m *Manager) CreateAgent(ctx context.Context, owner uuid.UUID, p CreateAgentParams) (*store.Agent, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("agentmgr: name is required")
	}

	if existing, err := m.st.GetAgentByName(ctx, owner, p.Name); err == nil && existing != nil {
		return nil, fmt.Errorf("agentmgr: agent %q already exists", p.Name)
	} else if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("agentmgr: lookup existing agent: %w", err)
	}

	if owned, err := m.st.ListAgents(ctx, owner, false); err != nil {
		return nil, fmt.Errorf("agentmgr: count owner's agents: %w", err)
	} else if len(owned) >= maxActiveAgentsPerOwner {
		return nil, fmt.Errorf("agentmgr: owner already has %d agents (limit %d)", len(owned), maxActiveAgentsPerOwner)
	}

	systemPrompt := p.SystemPrompt
	meta := store.Metadata{}
	if len(p.AllowedMCPs) > 0 {
		meta["allowed_mcps"] = p.AllowedMCPs
	}

	model := p.Model
	if p.SubagentTemplate != "" {
		tmpl, err := LoadTemplate(m.templatesDir, p.SubagentTemplate)
		if err != nil {
			return nil, err
		}
		systemPrompt = tmpl.Body
		if model == "" {
			model = tmpl.Model
		}
		meta["template"] = map[string]any{
			"name":        tmpl.Name,
			"description": tmpl.Description,
			"tools":       tmpl.Tools,
			"color":       tmpl.Color,
		}
	}
	if systemPrompt == "" {
		return nil, fmt.Errorf("agentmgr: system_prompt is required unless subagent_template is given")
	}

	agent := &store.Agent{
		OrchestratorID: owner,
		Name:           p.Name,
		Model:          m.resolveModel(model),
		SystemPrompt:   systemPrompt,
		WorkingDir:     p.WorkingDir,
		Status:         store.StatusIdle,
		Metadata:       meta,
	}
	created, err := m.st.CreateAgent(ctx, agent)
	if err != nil {
		if err == store.ErrDuplicateName {
			return nil, fmt.Errorf("agentmgr: agent %q already exists", p.Name)
		}
		return nil, fmt.Errorf("agentmgr: create agent: %w", err)
	}

	if err := m.runGreeting(ctx, created); err != nil {
		m.log.Warn("agent greeting turn failed", zap.String("agent", created.Name), zap.Error(err))
	}

	if m.hub != nil {
		m.hub.BroadcastAgentCreated(map[string]any{
			"id":     created.ID.String(),
			"name":   created.Name,
			"status": string(created.Status),
		})
	}
	return created, nil
}

// runGreeting runs the "Ready. Awaiting instructions." one-shot turn that
// obtains the new agent's session token (§4.6).
func (m *Manager) runGreeting(ctx context.Context, a *store.Agent) error {
	runner := orchestrator.NewRunner(orchestrator.Config{
		SDK:          m.sdk,
		Model:        a.Model,
		SystemPrompt: a.SystemPrompt,
		WorkingDir:   a.WorkingDir,
		Sink:         &greetingSink{st: m.st, agentID: a.ID},
	})
	return runner.Run(ctx, "", "Ready. Awaiting instructions.")
}

// greetingSink captures only the session token from the initial turn.
type greetingSink struct {
	st      store.Store
	agentID uuid.UUID
}

func (s *greetingSink) OnSessionToken(ctx context.Context, token string) error {
	return s.st.UpdateAgentSession(ctx, s.agentID, token)
}
func (s *greetingSink) OnUsage(ctx context.Context, inputTokens, outputTokens int64, costUSD float64) error {
	_, _, err := s.st.UpdateAgentCosts(ctx, s.agentID, store.CostUpdate{InputTokens: inputTokens, OutputTokens: outputTokens, Cost: costUSD})
	return err
}
func (s *greetingSink) OnText(ctx context.Context, text string) error         { return nil }
func (s *greetingSink) OnThinking(ctx context.Context, text string) error     { return nil }
func (s *greetingSink) OnToolUse(ctx context.Context, name string, input map[string]any, id string) error {
	return nil
}

var _ orchestrator.Sink = (*greetingSink)(nil)

// AgentSummary is one row of the list_agents tool's tabular output.
type AgentSummary struct {
	ID           string
	Name         string
	Model        string
	Status       store.Status
	InputTokens  int64
	OutputTokens int64
	TotalCost    float64
}

// ListAgents returns the owner's non-archived agents (§4.6).
func (m *Manager) ListAgents(ctx context.Context, owner uuid.UUID) ([]AgentSummary, error) {
	agents, err := m.st.ListAgents(ctx, owner, false)
	if err != nil {
		return nil, fmt.Errorf("agentmgr: list agents: %w", err)
	}
	out := make([]AgentSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentSummary{
			ID: a.ID.String(), Name: a.Name, Model: a.Model, Status: a.Status,
			InputTokens: a.InputTokens, OutputTokens: a.OutputTokens, TotalCost: a.TotalCost,
		})
	}
	return out, nil
}

// InterruptAgent cancels an in-flight run, if any; it is a benign no-op
// otherwise (§4.6).
func (m *Manager) InterruptAgent(agentName string) string {
	m.mu.Lock()
	run, ok := m.active[agentName]
	m.mu.Unlock()
	if !ok {
		return fmt.Sprintf("agent %q has no active run", agentName)
	}
	run.runner.Interrupt()
	return fmt.Sprintf("interrupted agent %q", agentName)
}

// DeleteAgent soft-deletes an agent, frees its file tracker, and
// broadcasts the deletion (§4.6).
func (m *Manager) DeleteAgent(ctx context.Context, owner uuid.UUID, agentName string) error {
	a, err := m.st.GetAgentByName(ctx, owner, agentName)
	if err != nil {
		return fmt.Errorf("agentmgr: lookup agent %q: %w", agentName, err)
	}
	if err := m.st.SoftDeleteAgent(ctx, a.ID); err != nil {
		return fmt.Errorf("agentmgr: soft delete agent %q: %w", agentName, err)
	}
	m.forgetTracker(a.ID)
	if m.hub != nil {
		m.hub.BroadcastAgentDeleted(agentName)
	}
	return nil
}

// ReadSystemLogs is the read_system_logs tool (§4.6): paginated read with
// an ILIKE filter on message and an optional level filter.
func (m *Manager) ReadSystemLogs(ctx context.Context, offset, limit int, messageContains, level string) ([]*store.SystemLog, error) {
	if limit <= 0 {
		limit = 50
	}
	logs, err := m.st.ListSystemLogs(ctx, offset, limit, messageContains, level)
	if err != nil {
		return nil, fmt.Errorf("agentmgr: list system logs: %w", err)
	}
	return logs, nil
}

// CostReport is the report_cost tool's output (§4.6).
type CostReport struct {
	InputTokens       int64
	OutputTokens      int64
	TotalCost         float64
	ContextUsagePct   float64
}

// ReportCost fetches the active orchestrator's cumulative totals and
// estimates context usage against the configured context window.
func (m *Manager) ReportCost(ctx context.Context) (*CostReport, error) {
	orch, err := m.st.GetActiveOrchestrator(ctx)
	if err != nil {
		return nil, fmt.Errorf("agentmgr: get active orchestrator: %w", err)
	}
	maxCtx := m.economy.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = 200_000
	}
	used := orch.InputTokens + orch.OutputTokens
	pct := float64(used) / float64(maxCtx) * 100
	return &CostReport{
		InputTokens:     orch.InputTokens,
		OutputTokens:    orch.OutputTokens,
		TotalCost:       orch.TotalCost,
		ContextUsagePct: pct,
	}, nil
}

func now() time.Time { return time.Now() }

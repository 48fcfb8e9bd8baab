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
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a get-by-id/name lookup finds nothing.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateName is returned by CreateAgent when (owner, name) already
// names a non-archived agent.
var ErrDuplicateName = errors.New("store: duplicate agent name")

// ErrSessionAlreadySet names the case where a row's session is already
// non-null (the monotonic-acquire invariant in §3). The Store
// implementations do not return it: UpdateOrchestratorSession reports that
// case as (false, nil).
var ErrSessionAlreadySet = errors.New("store: session already set")

// Store is the typed CRUD surface consumed by the rest of the service
// (§4.1). All operations are context-bound and safe for concurrent use; a
// single *Store wraps one pooled connection.
type Store interface {
	Close()

	// Orchestrator
	GetOrchestratorBySession(ctx context.Context, sessionID string) (*Orchestrator, error)
	GetOrchestratorByID(ctx context.Context, id uuid.UUID) (*Orchestrator, error)
	GetActiveOrchestrator(ctx context.Context) (*Orchestrator, error)
	CreateOrchestrator(ctx context.Context, o *Orchestrator) (*Orchestrator, error)
	UpdateOrchestratorSession(ctx context.Context, id uuid.UUID, sessionID string) (bool, error)
	UpdateOrchestratorCosts(ctx context.Context, id uuid.UUID, delta CostUpdate) (int, CostTotals, error)
	UpdateOrchestratorStatus(ctx context.Context, id uuid.UUID, status Status) error
	MergeOrchestratorMetadata(ctx context.Context, id uuid.UUID, patch Metadata) error

	// Agent
	CreateAgent(ctx context.Context, a *Agent) (*Agent, error)
	GetAgentByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	GetAgentByName(ctx context.Context, owner uuid.UUID, name string) (*Agent, error)
	ListAgents(ctx context.Context, owner uuid.UUID, archived bool) ([]*Agent, error)
	UpdateAgentSession(ctx context.Context, id uuid.UUID, sessionID string) error
	UpdateAgentStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateAgentCosts(ctx context.Context, id uuid.UUID, delta CostUpdate) (int, CostTotals, error)
	ResetAgentTokens(ctx context.Context, id uuid.UUID) error
	SoftDeleteAgent(ctx context.Context, id uuid.UUID) error
	UpdateAgentMetadata(ctx context.Context, id uuid.UUID, patch Metadata) error

	// Chat
	InsertChatMessage(ctx context.Context, m *ChatMessage) (*ChatMessage, error)
	ChatHistory(ctx context.Context, owner uuid.UUID, limit, offset int, agentID *uuid.UUID) ([]*ChatMessage, error)
	ChatTurnCount(ctx context.Context, owner uuid.UUID) (int, error)
	UpdateChatSummary(ctx context.Context, id uuid.UUID, summary string) error

	// Agent log
	InsertAgentLog(ctx context.Context, l *AgentLog) (*AgentLog, error)
	UpdateAgentLogSummary(ctx context.Context, id uuid.UUID, summary string) error
	UpdateAgentLogPayload(ctx context.Context, id uuid.UUID, patch Metadata) error
	GetAgentLogs(ctx context.Context, agentID uuid.UUID, taskSlug string) ([]*AgentLog, error)
	GetAgentLogTailSummaries(ctx context.Context, agentID uuid.UUID, taskSlug string, tail, offset int) ([]*AgentLog, error)
	GetAgentLogTailRaw(ctx context.Context, agentID uuid.UUID, taskSlug string, tail, offset int) ([]*AgentLog, error)
	GetLatestTaskSlug(ctx context.Context, agentID uuid.UUID) (string, error)
	NextEntryIndex(ctx context.Context, agentID uuid.UUID, taskSlug string) (int, error)

	// System log
	InsertSystemLog(ctx context.Context, l *SystemLog) (*SystemLog, error)
	ListSystemLogs(ctx context.Context, offset, limit int, messageContains, level string) ([]*SystemLog, error)

	// Prompt
	InsertPrompt(ctx context.Context, p *Prompt) (*Prompt, error)
	UpdatePromptSummary(ctx context.Context, id uuid.UUID, summary string) error
}

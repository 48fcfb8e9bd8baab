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
// Package store is the typed CRUD adapter over the service's relational
// schema (§6.2): orchestrators, agents, chat, agent logs, system logs, and
// prompts.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status shared by orchestrators and agents.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusExecuting Status = "executing"
	StatusWaiting   Status = "waiting"
	StatusBlocked   Status = "blocked"
	StatusComplete  Status = "complete"
)

// Party is a chat message's sender/receiver domain.
type Party string

const (
	PartyUser         Party = "user"
	PartyOrchestrator Party = "orchestrator"
	PartyAgent        Party = "agent"
)

// LogCategory classifies an agent log row.
type LogCategory string

const (
	LogCategoryHook     LogCategory = "hook"
	LogCategoryResponse LogCategory = "response"
)

// PromptAuthor is who produced a prompt row.
type PromptAuthor string

const (
	PromptAuthorEngineer        PromptAuthor = "engineer"
	PromptAuthorOrchestratorAgent PromptAuthor = "orchestrator_agent"
)

// Metadata is a JSONB-backed string-keyed map.
type Metadata map[string]any

// Orchestrator is the singleton-per-process, persisted conversation record.
type Orchestrator struct {
	ID            uuid.UUID
	SessionID     *string
	SystemPrompt  string
	WorkingDir    string
	InputTokens   int64
	OutputTokens  int64
	TotalCost     float64
	Status        Status
	Metadata      Metadata
	Archived      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Agent is one worker, owned by an orchestrator.
type Agent struct {
	ID             uuid.UUID
	OrchestratorID uuid.UUID
	Name           string
	Model          string
	SystemPrompt   string
	WorkingDir     string
	Status         Status
	SessionID      *string
	InputTokens    int64
	OutputTokens   int64
	TotalCost      float64
	Metadata       Metadata
	Archived       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChatMessage is one append-only row in the orchestrator's chat history.
type ChatMessage struct {
	ID             uuid.UUID
	OrchestratorID uuid.UUID
	SenderType     Party
	ReceiverType   Party
	Message        string
	AgentID        *uuid.UUID
	Summary        *string
	Metadata       Metadata
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AgentLog is one append-only event row for an agent's task.
type AgentLog struct {
	ID           uuid.UUID
	AgentID      uuid.UUID
	SessionID    *string
	TaskSlug     string
	EntryIndex   int
	EventCategory LogCategory
	EventType    string
	Content      *string
	Payload      Metadata
	Summary      *string
	Timestamp    time.Time
}

// SystemLog is a timestamped application/orchestrator-attributed log row.
type SystemLog struct {
	ID        uuid.UUID
	FilePath  *string
	Level     string
	Message   string
	Summary   *string
	Metadata  Metadata
	Timestamp time.Time
}

// Prompt is one command issued to an agent.
type Prompt struct {
	ID         uuid.UUID
	AgentID    uuid.UUID
	TaskSlug   string
	Author     PromptAuthor
	PromptText string
	Summary    *string
	SessionID  *string
	Timestamp  time.Time
}

// CostUpdate is the incremental triple applied by UpdateCosts.
type CostUpdate struct {
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// CostTotals is the row's new cumulative totals after an UpdateCosts call.
type CostTotals struct {
	InputTokens  int64
	OutputTokens int64
	TotalCost    float64
}

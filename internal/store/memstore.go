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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store used by tests and by the fake-LLM demo
// mode; it holds the same invariants as PGStore without a database.
type MemStore struct {
	mu            sync.Mutex
	orchestrators map[uuid.UUID]*Orchestrator
	agents        map[uuid.UUID]*Agent
	chat          []*ChatMessage
	agentLogs     []*AgentLog
	systemLogs    []*SystemLog
	prompts       []*Prompt
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		orchestrators: make(map[uuid.UUID]*Orchestrator),
		agents:        make(map[uuid.UUID]*Agent),
	}
}

func (s *MemStore) Close() {}

func cloneOrchestrator(o *Orchestrator) *Orchestrator {
	cp := *o
	cp.Metadata = cloneMeta(o.Metadata)
	return &cp
}

func cloneMeta(m Metadata) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *MemStore) GetOrchestratorBySession(ctx context.Context, sessionID string) (*Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orchestrators {
		if o.SessionID != nil && *o.SessionID == sessionID && !o.Archived {
			return cloneOrchestrator(o), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) GetOrchestratorByID(ctx context.Context, id uuid.UUID) (*Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orchestrators[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrchestrator(o), nil
}

func (s *MemStore) GetActiveOrchestrator(ctx context.Context) (*Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Orchestrator
	for _, o := range s.orchestrators {
		if o.Archived {
			continue
		}
		if best == nil || o.CreatedAt.Before(best.CreatedAt) {
			best = o
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return cloneOrchestrator(best), nil
}

func (s *MemStore) CreateOrchestrator(ctx context.Context, o *Orchestrator) (*Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusIdle
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	cp := cloneOrchestrator(o)
	s.orchestrators[o.ID] = cp
	return cloneOrchestrator(cp), nil
}

func (s *MemStore) UpdateOrchestratorSession(ctx context.Context, id uuid.UUID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orchestrators[id]
	if !ok || o.SessionID != nil {
		return false, nil
	}
	sid := sessionID
	o.SessionID = &sid
	o.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemStore) UpdateOrchestratorCosts(ctx context.Context, id uuid.UUID, delta CostUpdate) (int, CostTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orchestrators[id]
	if !ok {
		return 0, CostTotals{}, nil
	}
	o.InputTokens += delta.InputTokens
	o.OutputTokens += delta.OutputTokens
	o.TotalCost += delta.Cost
	o.UpdatedAt = time.Now()
	return 1, CostTotals{InputTokens: o.InputTokens, OutputTokens: o.OutputTokens, TotalCost: o.TotalCost}, nil
}

func (s *MemStore) UpdateOrchestratorStatus(ctx context.Context, id uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orchestrators[id]; ok {
		o.Status = status
		o.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemStore) MergeOrchestratorMetadata(ctx context.Context, id uuid.UUID, patch Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orchestrators[id]
	if !ok {
		return nil
	}
	if o.Metadata == nil {
		o.Metadata = Metadata{}
	}
	for k, v := range patch {
		o.Metadata[k] = v
	}
	o.UpdatedAt = time.Now()
	return nil
}

func cloneAgent(a *Agent) *Agent {
	cp := *a
	cp.Metadata = cloneMeta(a.Metadata)
	return &cp
}

func (s *MemStore) CreateAgent(ctx context.Context, a *Agent) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.agents {
		if existing.OrchestratorID == a.OrchestratorID && existing.Name == a.Name && !existing.Archived {
			return nil, ErrDuplicateName
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusIdle
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := cloneAgent(a)
	s.agents[a.ID] = cp
	return cloneAgent(cp), nil
}

func (s *MemStore) GetAgentByID(ctx context.Context, id uuid.UUID) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAgent(a), nil
}

func (s *MemStore) GetAgentByName(ctx context.Context, owner uuid.UUID, name string) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.OrchestratorID == owner && a.Name == name && !a.Archived {
			return cloneAgent(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListAgents(ctx context.Context, owner uuid.UUID, archived bool) ([]*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Agent
	for _, a := range s.agents {
		if a.OrchestratorID == owner && a.Archived == archived {
			out = append(out, cloneAgent(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) UpdateAgentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		a.SessionID = &sessionID
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemStore) UpdateAgentStatus(ctx context.Context, id uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		a.Status = status
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemStore) UpdateAgentCosts(ctx context.Context, id uuid.UUID, delta CostUpdate) (int, CostTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return 0, CostTotals{}, nil
	}
	a.InputTokens += delta.InputTokens
	a.OutputTokens += delta.OutputTokens
	a.TotalCost += delta.Cost
	a.UpdatedAt = time.Now()
	return 1, CostTotals{InputTokens: a.InputTokens, OutputTokens: a.OutputTokens, TotalCost: a.TotalCost}, nil
}

func (s *MemStore) ResetAgentTokens(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		a.InputTokens, a.OutputTokens, a.TotalCost = 0, 0, 0
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemStore) SoftDeleteAgent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		a.Archived = true
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemStore) UpdateAgentMetadata(ctx context.Context, id uuid.UUID, patch Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil
	}
	if a.Metadata == nil {
		a.Metadata = Metadata{}
	}
	for k, v := range patch {
		a.Metadata[k] = v
	}
	a.UpdatedAt = time.Now()
	return nil
}

func cloneChat(m *ChatMessage) *ChatMessage {
	cp := *m
	cp.Metadata = cloneMeta(m.Metadata)
	return &cp
}

func (s *MemStore) InsertChatMessage(ctx context.Context, m *ChatMessage) (*ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	cp := cloneChat(m)
	s.chat = append(s.chat, cp)
	return cloneChat(cp), nil
}

func (s *MemStore) ChatHistory(ctx context.Context, owner uuid.UUID, limit, offset int, agentID *uuid.UUID) ([]*ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*ChatMessage
	for _, m := range s.chat {
		if m.OrchestratorID != owner {
			continue
		}
		if agentID != nil && (m.AgentID == nil || *m.AgentID != *agentID) {
			continue
		}
		matched = append(matched, m)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) || limit <= 0 {
		end = len(matched)
	}
	page := matched[offset:end]
	out := make([]*ChatMessage, len(page))
	for i, m := range page {
		out[len(page)-1-i] = cloneChat(m)
	}
	return out, nil
}

func (s *MemStore) ChatTurnCount(ctx context.Context, owner uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.chat {
		if m.OrchestratorID == owner && m.SenderType == PartyUser {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) UpdateChatSummary(ctx context.Context, id uuid.UUID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.chat {
		if m.ID == id {
			m.Summary = &summary
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return nil
}

func cloneLog(l *AgentLog) *AgentLog {
	cp := *l
	cp.Payload = cloneMeta(l.Payload)
	return &cp
}

func (s *MemStore) NextEntryIndex(ctx context.Context, agentID uuid.UUID, taskSlug string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := -1
	for _, l := range s.agentLogs {
		if l.AgentID == agentID && l.TaskSlug == taskSlug && l.EntryIndex > max {
			max = l.EntryIndex
		}
	}
	return max + 1, nil
}

func (s *MemStore) InsertAgentLog(ctx context.Context, l *AgentLog) (*AgentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.Timestamp = time.Now()
	cp := cloneLog(l)
	s.agentLogs = append(s.agentLogs, cp)
	return cloneLog(cp), nil
}

func (s *MemStore) UpdateAgentLogSummary(ctx context.Context, id uuid.UUID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.agentLogs {
		if l.ID == id {
			l.Summary = &summary
			return nil
		}
	}
	return nil
}

func (s *MemStore) UpdateAgentLogPayload(ctx context.Context, id uuid.UUID, patch Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.agentLogs {
		if l.ID == id {
			if l.Payload == nil {
				l.Payload = Metadata{}
			}
			for k, v := range patch {
				l.Payload[k] = v
			}
			return nil
		}
	}
	return nil
}

func (s *MemStore) GetAgentLogs(ctx context.Context, agentID uuid.UUID, taskSlug string) ([]*AgentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*AgentLog
	for _, l := range s.agentLogs {
		if l.AgentID != agentID {
			continue
		}
		if taskSlug != "" && l.TaskSlug != taskSlug {
			continue
		}
		out = append(out, cloneLog(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskSlug != out[j].TaskSlug {
			return out[i].TaskSlug < out[j].TaskSlug
		}
		return out[i].EntryIndex < out[j].EntryIndex
	})
	return out, nil
}

func (s *MemStore) getTail(agentID uuid.UUID, taskSlug string, tail, offset int) []*AgentLog {
	var matched []*AgentLog
	for _, l := range s.agentLogs {
		if l.AgentID == agentID && l.TaskSlug == taskSlug {
			matched = append(matched, l)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].EntryIndex > matched[j].EntryIndex })
	if offset >= len(matched) {
		return nil
	}
	end := offset + tail
	if end > len(matched) || tail <= 0 {
		end = len(matched)
	}
	page := matched[offset:end]
	out := make([]*AgentLog, len(page))
	for i, l := range page {
		out[len(page)-1-i] = cloneLog(l)
	}
	return out
}

func (s *MemStore) GetAgentLogTailSummaries(ctx context.Context, agentID uuid.UUID, taskSlug string, tail, offset int) ([]*AgentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTail(agentID, taskSlug, tail, offset), nil
}

func (s *MemStore) GetAgentLogTailRaw(ctx context.Context, agentID uuid.UUID, taskSlug string, tail, offset int) ([]*AgentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTail(agentID, taskSlug, tail, offset), nil
}

func (s *MemStore) GetLatestTaskSlug(ctx context.Context, agentID uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *AgentLog
	for _, l := range s.agentLogs {
		if l.AgentID != agentID {
			continue
		}
		if latest == nil || l.Timestamp.After(latest.Timestamp) {
			latest = l
		}
	}
	if latest == nil {
		return "", ErrNotFound
	}
	return latest.TaskSlug, nil
}

func (s *MemStore) InsertSystemLog(ctx context.Context, l *SystemLog) (*SystemLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.Timestamp = time.Now()
	cp := *l
	cp.Metadata = cloneMeta(l.Metadata)
	s.systemLogs = append(s.systemLogs, &cp)
	out := cp
	return &out, nil
}

func (s *MemStore) ListSystemLogs(ctx context.Context, offset, limit int, messageContains, level string) ([]*SystemLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*SystemLog
	for _, l := range s.systemLogs {
		if messageContains != "" && !containsFold(l.Message, messageContains) {
			continue
		}
		if level != "" && l.Level != level {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) || limit <= 0 {
		end = len(matched)
	}
	out := make([]*SystemLog, end-offset)
	copy(out, matched[offset:end])
	return out, nil
}

func containsFold(haystack, needle string) bool {
	hl, nl := len(haystack), len(needle)
	if nl == 0 {
		return true
	}
	if nl > hl {
		return false
	}
	lowerH := toLower(haystack)
	lowerN := toLower(needle)
	for i := 0; i+nl <= len(lowerH); i++ {
		if lowerH[i:i+nl] == lowerN {
			return true
		}
	}
	return false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (s *MemStore) InsertPrompt(ctx context.Context, p *Prompt) (*Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Timestamp = time.Now()
	cp := *p
	s.prompts = append(s.prompts, &cp)
	out := cp
	return &out, nil
}

func (s *MemStore) UpdatePromptSummary(ctx context.Context, id uuid.UUID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prompts {
		if p.ID == id {
			p.Summary = &summary
			return nil
		}
	}
	return nil
}

var _ Store = (*MemStore)(nil)
var _ Store = (*PGStore)(nil)

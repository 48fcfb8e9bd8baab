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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loomrelay/internal/llmsdk"
	"github.com/teradata-labs/loomrelay/internal/store"
)

// fakeHub records broadcasts without asserting on them; tests that care
// about a specific broadcast inspect its slices directly.
type fakeHub struct {
	statusChanges []string
	deleted       []string
}

func (f *fakeHub) BroadcastAgentCreated(agent any)        {}
func (f *fakeHub) BroadcastAgentUpdated(agent any)        {}
func (f *fakeHub) BroadcastAgentDeleted(agentName string) { f.deleted = append(f.deleted, agentName) }
func (f *fakeHub) BroadcastAgentStatusChanged(agentName, status string) {
	f.statusChanges = append(f.statusChanges, agentName+":"+status)
}
func (f *fakeHub) BroadcastAgentLog(category, eventType string, entryIndex int, payload any, summary *string) {
}
func (f *fakeHub) BroadcastAgentSummaryUpdate(agentID, summary string) {}
func (f *fakeHub) BroadcastSystemLog(level, message string)            {}
func (f *fakeHub) BroadcastFileTracking(agentID string, dossier any)    {}

func newTestManager(t *testing.T) (*Manager, *store.MemStore, uuid.UUID) {
	t.Helper()
	st := store.NewMemStore()
	owner, err := st.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "be helpful", WorkingDir: t.TempDir()})
	require.NoError(t, err)

	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{llmsdk.NewTextTurn("sess-1", "Ready.", 5, 5)}}
	mgr := New(st, &fakeHub{}, sdk, nil, Options{PrimaryModel: "claude-sonnet-4-5", FastModel: "claude-haiku-4-5"})
	return mgr, st, owner.ID
}

func TestCreateAgent_PersistsAndGreets(t *testing.T) {
	mgr, st, owner := newTestManager(t)

	agent, err := mgr.CreateAgent(context.Background(), owner, CreateAgentParams{Name: "builder", SystemPrompt: "build things"})
	require.NoError(t, err)
	assert.Equal(t, "builder", agent.Name)
	assert.Equal(t, "claude-sonnet-4-5", agent.Model)

	fetched, err := st.GetAgentByName(context.Background(), owner, "builder")
	require.NoError(t, err)
	require.NotNil(t, fetched.SessionID)
	assert.Equal(t, "sess-1", *fetched.SessionID)
}

func TestCreateAgent_DuplicateNameRejected(t *testing.T) {
	mgr, _, owner := newTestManager(t)

	_, err := mgr.CreateAgent(context.Background(), owner, CreateAgentParams{Name: "dup", SystemPrompt: "x"})
	require.NoError(t, err)

	_, err = mgr.CreateAgent(context.Background(), owner, CreateAgentParams{Name: "dup", SystemPrompt: "x"})
	assert.Error(t, err)
}

func TestCreateAgent_RequiresSystemPromptOrTemplate(t *testing.T) {
	mgr, _, owner := newTestManager(t)

	_, err := mgr.CreateAgent(context.Background(), owner, CreateAgentParams{Name: "bare"})
	assert.Error(t, err)
}

func TestListAgents_ReturnsSummaries(t *testing.T) {
	mgr, _, owner := newTestManager(t)
	_, err := mgr.CreateAgent(context.Background(), owner, CreateAgentParams{Name: "a", SystemPrompt: "x"})
	require.NoError(t, err)

	summaries, err := mgr.ListAgents(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "a", summaries[0].Name)
}

func TestInterruptAgent_NoActiveRunIsBenign(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	msg := mgr.InterruptAgent("nonexistent")
	assert.Contains(t, msg, "no active run")
}

func TestDeleteAgent_SoftDeletesAndBroadcasts(t *testing.T) {
	hub := &fakeHub{}
	st := store.NewMemStore()
	owner, err := st.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{llmsdk.NewTextTurn("s", "Ready.", 1, 1)}}
	mgr := New(st, hub, sdk, nil, Options{PrimaryModel: "m", FastModel: "f"})

	_, err = mgr.CreateAgent(context.Background(), owner.ID, CreateAgentParams{Name: "gone", SystemPrompt: "x"})
	require.NoError(t, err)

	require.NoError(t, mgr.DeleteAgent(context.Background(), owner.ID, "gone"))
	assert.Contains(t, hub.deleted, "gone")

	agents, err := mgr.ListAgents(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestReportCost_ComputesContextUsagePct(t *testing.T) {
	mgr, st, owner := newTestManager(t)
	mgr.economy.MaxContextTokens = 1000
	_, _, err := st.UpdateOrchestratorCosts(context.Background(), owner, store.CostUpdate{InputTokens: 100, OutputTokens: 150, Cost: 0.01})
	require.NoError(t, err)

	report, err := mgr.ReportCost(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 25.0, report.ContextUsagePct, 0.001)
}

func TestReadSystemLogs_DefaultsLimit(t *testing.T) {
	mgr, st, _ := newTestManager(t)
	_, err := st.InsertSystemLog(context.Background(), &store.SystemLog{Level: "info", Message: "hello"})
	require.NoError(t, err)

	logs, err := mgr.ReadSystemLogs(context.Background(), 0, 0, "", "")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "hello", logs[0].Message)
}

func TestDispatch_CreateAgentThenListAgents(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	result, isError := mgr.Dispatch(context.Background(), "create_agent", map[string]any{
		"name": "worker-1", "system_prompt": "do work",
	})
	require.False(t, isError, result)
	assert.Contains(t, result, "worker-1")

	result, isError = mgr.Dispatch(context.Background(), "list_agents", map[string]any{})
	require.False(t, isError, result)
	assert.Contains(t, result, "worker-1")
}

func TestDispatch_UnknownToolIsError(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	result, isError := mgr.Dispatch(context.Background(), "nope", map[string]any{})
	assert.True(t, isError)
	assert.Contains(t, result, "unknown tool")
}

func TestToolsListsAllEight(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	names := map[string]bool{}
	for _, tool := range mgr.Tools() {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"create_agent", "list_agents", "command_agent", "check_agent_status",
		"delete_agent", "interrupt_agent", "read_system_logs", "report_cost",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

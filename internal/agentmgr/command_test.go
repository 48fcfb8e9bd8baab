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
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loomrelay/internal/llmsdk"
	"github.com/teradata-labs/loomrelay/internal/store"
)

func waitForAgentStatus(t *testing.T, mgr *Manager, owner uuid.UUID, name string, want store.Status) *store.Agent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a, err := mgr.st.GetAgentByName(context.Background(), owner, name)
		require.NoError(t, err)
		if a.Status == want {
			return a
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("agent %s never reached status %s", name, want)
	return nil
}

func TestCommandAgent_RunsTurnAndReturnsToIdle(t *testing.T) {
	st := store.NewMemStore()
	owner, err := st.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)

	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{
		llmsdk.NewTextTurn("greet-session", "Ready.", 1, 1),
		llmsdk.NewTextTurn("greet-session", "Done with the task.", 10, 20),
	}}
	mgr := New(st, &fakeHub{}, sdk, nil, Options{PrimaryModel: "m", FastModel: "f"})

	agent, err := mgr.CreateAgent(context.Background(), owner.ID, CreateAgentParams{Name: "worker", SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)

	slug, err := mgr.CommandAgent(context.Background(), owner.ID, agent.Name, "do the thing")
	require.NoError(t, err)
	assert.NotEmpty(t, slug)

	updated := waitForAgentStatus(t, mgr, owner.ID, agent.Name, store.StatusIdle)
	assert.Equal(t, int64(11), updated.InputTokens)
	assert.Equal(t, int64(21), updated.OutputTokens)
}

func TestCommandAgent_RejectsConcurrentCommands(t *testing.T) {
	st := store.NewMemStore()
	owner, err := st.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)

	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{llmsdk.NewTextTurn("s", "Ready.", 1, 1)}}
	mgr := New(st, &fakeHub{}, sdk, nil, Options{PrimaryModel: "m", FastModel: "f"})

	agent, err := mgr.CreateAgent(context.Background(), owner.ID, CreateAgentParams{Name: "busy", SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)

	mgr.mu.Lock()
	mgr.active[agent.Name] = &agentRun{runner: nil, taskSlug: "in-flight"}
	mgr.mu.Unlock()

	_, err = mgr.CommandAgent(context.Background(), owner.ID, agent.Name, "another")
	assert.Error(t, err)
}

func TestCheckAgentStatus_NoTaskYetReturnsEmptyTail(t *testing.T) {
	st := store.NewMemStore()
	owner, err := st.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{llmsdk.NewTextTurn("s", "Ready.", 1, 1)}}
	mgr := New(st, &fakeHub{}, sdk, nil, Options{PrimaryModel: "m", FastModel: "f"})

	agent, err := mgr.CreateAgent(context.Background(), owner.ID, CreateAgentParams{Name: "fresh", SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)

	report, err := mgr.CheckAgentStatus(context.Background(), owner.ID, agent.Name, 10, 0, false)
	require.NoError(t, err)
	assert.Equal(t, store.StatusIdle, report.Status)
	assert.Empty(t, report.Tail)
}

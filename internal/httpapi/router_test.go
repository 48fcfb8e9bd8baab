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
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loomrelay/internal/agentmgr"
	"github.com/teradata-labs/loomrelay/internal/llmsdk"
	"github.com/teradata-labs/loomrelay/internal/orchestrator"
	"github.com/teradata-labs/loomrelay/internal/store"
	"github.com/teradata-labs/loomrelay/internal/wshub"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store, *store.Orchestrator) {
	t.Helper()
	st := store.NewMemStore()
	cwd := t.TempDir()
	orch, err := st.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "be helpful", WorkingDir: cwd})
	require.NoError(t, err)

	hub := wshub.New(0, 0, nil)
	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{llmsdk.NewTextTurn("sess-1", "hi there", 3, 4)}}
	pipeline := orchestrator.NewPipeline(st, hub, sdk, orch, orchestrator.PipelineOptions{PrimaryModel: "m", FastModel: "f"})
	mgr := agentmgr.New(st, hub, sdk, nil, agentmgr.Options{PrimaryModel: "m", FastModel: "f"})

	r := NewRouter(Deps{
		Store:      st,
		Hub:        hub,
		Pipeline:   pipeline,
		Manager:    mgr,
		WorkingDir: cwd,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st, orch
}

func TestHandleHealth_ReportsServiceAndConnections(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "loomrelay", body["service"])
	assert.Equal(t, float64(0), body["websocket_connections"])
}

func TestHandleGetOrchestrator_ListsEightTools(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/get_orchestrator")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 8)
}

func TestHandleSendChat_RejectsEmptyMessage(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/send_chat", "application/json", bytes.NewBufferString(`{"message":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleSendChat_SchedulesTurnAsynchronously(t *testing.T) {
	srv, st, orch := newTestServer(t)

	resp, err := http.Post(srv.URL+"/send_chat", "application/json", bytes.NewBufferString(`{"message":"hello there"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs, err := st.ChatHistory(context.Background(), orch.ID, 10, 0, nil)
		require.NoError(t, err)
		if len(msgs) >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected the async turn to persist both the user message and the reply")
}

func TestHandleListAgents_NoAgentsReturnsEmptyList(t *testing.T) {
	srv, _, orch := newTestServer(t)

	_, err := http.Post(srv.URL+"/load_chat", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	_ = orch

	resp, err := http.Get(srv.URL + "/list_agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	agents, ok := body["agents"].([]any)
	require.True(t, ok)
	assert.Empty(t, agents)
}

func TestHandleClearCache_Succeeds(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/cache/clear", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleMetricsCache_DisabledWhenNoCacheWired(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/metrics/cache")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["enabled"])
}

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
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/agentmgr"
	"github.com/teradata-labs/loomrelay/internal/store"
)

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"service":               "loomrelay",
		"websocket_connections": s.deps.Hub.ClientCount(),
	})
}

// handleGetOrchestrator serves the fresh orchestrator record plus
// discovered slash commands, agent templates, and the management tool
// signatures the model may call (§6.1).
func (s *server) handleGetOrchestrator(w http.ResponseWriter, r *http.Request) {
	orch, err := s.deps.Store.GetActiveOrchestrator(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	commands := agentmgr.DiscoverSlashCommands(s.deps.WorkingDir)
	templatesDir := filepath.Join(s.deps.WorkingDir, ".claude", "agents")
	templates := agentmgr.ListTemplates(templatesDir)

	var tools []map[string]any
	if s.deps.Manager != nil {
		for _, t := range s.deps.Manager.Tools() {
			tools = append(tools, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.InputSchema,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orchestrator":  orch,
		"slash_commands": commands,
		"templates":     templates,
		"tools":         tools,
	})
}

func (s *server) handleGetHeaders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cwd": s.deps.WorkingDir})
}

type loadChatRequest struct {
	OrchestratorAgentID string `json:"orchestrator_agent_id"`
	Limit               int    `json:"limit"`
}

func (s *server) handleLoadChat(w http.ResponseWriter, r *http.Request) {
	var req loadChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	entries, turns, err := s.deps.Pipeline.LoadChatHistory(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": entries, "turn_count": turns})
}

type sendChatRequest struct {
	Message             string `json:"message"`
	OrchestratorAgentID string `json:"orchestrator_agent_id"`
}

// handleSendChat schedules the turn asynchronously and returns
// immediately; the turn's output streams over WS (§6.1, §4.7).
func (s *server) handleSendChat(w http.ResponseWriter, r *http.Request) {
	var req sendChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeValidationError(w, errors.New("message must not be empty"))
		return
	}

	go func(text string) {
		ctx := context.Background()
		if err := s.deps.Pipeline.HandleUserMessage(ctx, text); err != nil {
			s.deps.Log.Warn("send_chat turn failed", zap.Error(err))
			if s.deps.Hub != nil {
				s.deps.Hub.BroadcastError(err.Error())
			}
		}
	}(req.Message)

	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// event is one merged /get_events row: a chat message or an agent log,
// normalized and tagged with its sourceType (§6.1).
type event struct {
	SourceType string `json:"sourceType"`
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Payload    any    `json:"payload"`
}

// handleGetEvents merges agent_logs and orchestrator_chat, newest first
// during collection, then returned oldest-first (§6.1).
func (s *server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q, "limit", 50)
	offset := queryInt(q, "offset", 0)
	eventTypes := q.Get("event_types")
	if eventTypes == "" {
		eventTypes = "all"
	}
	wantChat := eventTypes == "all" || containsCSV(eventTypes, "orchestrator_chat")
	wantLogs := eventTypes == "all" || containsCSV(eventTypes, "agent_logs")

	var events []event

	if wantChat {
		orch, err := s.deps.Store.GetActiveOrchestrator(r.Context())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeStoreError(w, err)
			return
		}
		if orch != nil {
			messages, err := s.deps.Store.ChatHistory(r.Context(), orch.ID, limit, offset, nil)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			for _, m := range messages {
				events = append(events, event{
					SourceType: "orchestrator_chat",
					ID:         m.ID.String(),
					Timestamp:  m.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
					Payload:    m,
				})
			}
		}
	}

	if wantLogs {
		agentIDParam := q.Get("agent_id")
		taskSlug := q.Get("task_slug")
		if agentIDParam != "" {
			agentID, err := uuid.Parse(agentIDParam)
			if err != nil {
				writeValidationError(w, err)
				return
			}
			if taskSlug == "" {
				taskSlug, err = s.deps.Store.GetLatestTaskSlug(r.Context(), agentID)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					writeStoreError(w, err)
					return
				}
			}
			if taskSlug != "" {
				logs, err := s.deps.Store.GetAgentLogTailSummaries(r.Context(), agentID, taskSlug, limit, offset)
				if err != nil {
					writeStoreError(w, err)
					return
				}
				for _, l := range logs {
					events = append(events, event{
						SourceType: "agent_logs",
						ID:         l.ID.String(),
						Timestamp:  l.Timestamp.Format("2006-01-02T15:04:05.999999999Z07:00"),
						Payload:    l,
					})
				}
			}
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp > events[j].Timestamp })
	if len(events) > limit {
		events = events[:limit]
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func containsCSV(csv, want string) bool {
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == want {
			return true
		}
	}
	return false
}

// agentListRow is one /list_agents row, enriched with the agent's current
// task's log count (§6.1).
type agentListRow struct {
	agentmgr.AgentSummary
	LogCount int `json:"log_count"`
}

func (s *server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	orch, err := s.deps.Store.GetActiveOrchestrator(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	summaries, err := s.deps.Manager.ListAgents(r.Context(), orch.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	rows := make([]agentListRow, 0, len(summaries))
	for _, sum := range summaries {
		id, err := uuid.Parse(sum.ID)
		count := 0
		if err == nil {
			if slug, err := s.deps.Store.GetLatestTaskSlug(r.Context(), id); err == nil && slug != "" {
				if logs, err := s.deps.Store.GetAgentLogs(r.Context(), id, slug); err == nil {
					count = len(logs)
				}
			}
		}
		rows = append(rows, agentListRow{AgentSummary: sum, LogCount: count})
	}

	writeJSON(w, http.StatusOK, map[string]any{"agents": rows})
}

// handleResetOrchestrator clears the cache, resets the rate limiter, and
// reloads the orchestrator from the store — it never creates a new
// orchestrator (§6.1).
func (s *server) handleResetOrchestrator(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache != nil {
		s.deps.Cache.Clear()
	}
	if s.deps.Limiter != nil {
		s.deps.Limiter.Reset()
	}
	orch, err := s.deps.Store.GetActiveOrchestrator(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "orchestrator": orch})
}

func (s *server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache != nil {
		s.deps.Cache.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (s *server) handleMetricsTokens(w http.ResponseWriter, r *http.Request) {
	windowUsage := 0
	if s.deps.Limiter != nil {
		windowUsage = s.deps.Limiter.WindowUsage()
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens_used_last_minute": windowUsage})
}

func (s *server) handleMetricsCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	stats := s.deps.Cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "stats": stats})
}

func (s *server) handleMetricsCosts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Costs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	inputTokens, outputTokens, totalCost := s.deps.Costs.Totals()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":       true,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
		"total_cost":    totalCost,
	})
}

func queryInt(q map[string][]string, key string, def int) int {
	vals, ok := q[key]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return def
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil {
		return def
	}
	return n
}

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
// Package httpapi wires the service's HTTP/WS surface (spec.md §6.1) onto
// chi, grounded in goclaw's internal/gateway/server.go route registration
// shape and handleWebSocket upgrade pattern, adapted from goclaw's bare
// http.ServeMux to chi's mux plus middleware stack.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/agentmgr"
	"github.com/teradata-labs/loomrelay/internal/orchestrator"
	"github.com/teradata-labs/loomrelay/internal/store"
	"github.com/teradata-labs/loomrelay/internal/tokenecon"
	"github.com/teradata-labs/loomrelay/internal/wshub"
)

// Deps is everything a handler needs to serve one request; one Deps is
// built once at startup and closed over by every route.
type Deps struct {
	Store      store.Store
	Hub        *wshub.Hub
	Pipeline   *orchestrator.Pipeline
	Manager    *agentmgr.Manager
	Cache      *tokenecon.Cache
	Limiter    *tokenecon.RateLimiter
	Costs      *tokenecon.CostTracker
	WorkingDir string
	Log        *zap.Logger
}

type server struct {
	deps     Deps
	upgrader websocket.Upgrader
}

// NewRouter builds the chi.Router serving every path in spec.md §6.1.
func NewRouter(deps Deps) chi.Router {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	s := &server{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/get_orchestrator", s.handleGetOrchestrator)
	r.Get("/get_headers", s.handleGetHeaders)
	r.Post("/load_chat", s.handleLoadChat)
	r.Post("/send_chat", s.handleSendChat)
	r.Get("/get_events", s.handleGetEvents)
	r.Get("/list_agents", s.handleListAgents)
	r.Post("/api/orchestrator/reset", s.handleResetOrchestrator)
	r.Post("/api/cache/clear", s.handleClearCache)
	r.Get("/api/metrics/tokens", s.handleMetricsTokens)
	r.Get("/api/metrics/cache", s.handleMetricsCache)
	r.Get("/api/metrics/costs", s.handleMetricsCosts)
	r.Get("/ws", s.handleWebSocket)

	return r
}

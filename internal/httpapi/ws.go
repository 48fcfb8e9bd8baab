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
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// handleWebSocket upgrades the connection, registers it with the hub, and
// blocks reading inbound frames until the client disconnects, grounded in
// goclaw's internal/gateway/server.go handleWebSocket shape (§6.1, §4.2).
// Every inbound message — whatever its payload — marks the client alive;
// the server has no client-initiated RPCs of its own, only the
// server-pushed event grammar of §6.3.
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := s.deps.Hub.Connect(conn)
	defer s.deps.Hub.Disconnect(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		s.deps.Hub.NotePong(id)
	}
}

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
package wshub

import "github.com/teradata-labs/loomrelay/internal/pubsub"

// Typed helpers for each event class in §6.3. Each builds a Frame and
// broadcasts it; callers never hand-assemble the "type" field themselves.

func (h *Hub) BroadcastOrchestratorChat(message any) {
	h.Broadcast(Frame{"type": "orchestrator_chat", "message": message})
}

func (h *Hub) BroadcastChatStream(chunk string, isComplete bool) {
	h.Broadcast(Frame{"type": "chat_stream", "chunk": chunk, "is_complete": isComplete})
}

func (h *Hub) BroadcastChatTyping(isTyping bool) {
	h.Broadcast(Frame{"type": "chat_typing", "is_typing": isTyping})
}

func (h *Hub) BroadcastThinkingBlock(payload any) {
	h.Broadcast(Frame{"type": "thinking_block", "payload": payload})
}

func (h *Hub) BroadcastToolUseBlock(payload any) {
	h.Broadcast(Frame{"type": "tool_use_block", "payload": payload})
}

// agentLifecycleFrame wraps an agent lifecycle payload in the generic
// pubsub.Event envelope the store/hub boundary shares, so every
// agent_created/updated/deleted frame carries the same Type/Timestamp shape
// a store-level subscriber would see. payloadKey names the field the
// event's Payload is surfaced under ("agent" or "name").
func agentLifecycleFrame(frameType, payloadKey string, ev pubsub.Event[any]) Frame {
	return Frame{
		"type":     frameType,
		payloadKey: ev.Payload,
		"timestamp": ev.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
}

func (h *Hub) BroadcastAgentCreated(agent any) {
	h.Broadcast(agentLifecycleFrame("agent_created", "agent", pubsub.NewCreatedEvent(agent)))
}

func (h *Hub) BroadcastAgentUpdated(agent any) {
	h.Broadcast(agentLifecycleFrame("agent_updated", "agent", pubsub.NewUpdatedEvent(agent)))
}

func (h *Hub) BroadcastAgentDeleted(agentName string) {
	h.Broadcast(agentLifecycleFrame("agent_deleted", "name", pubsub.NewDeletedEvent[any](agentName)))
}

func (h *Hub) BroadcastAgentStatusChanged(agentName, status string) {
	h.Broadcast(Frame{"type": "agent_status_changed", "name": agentName, "status": status})
}

func (h *Hub) BroadcastAgentLog(category, eventType string, entryIndex int, payload any, summary *string) {
	h.Broadcast(Frame{
		"type":        "agent_log",
		"category":    category,
		"event_type":  eventType,
		"entry_index": entryIndex,
		"payload":     payload,
		"summary":     summary,
	})
}

func (h *Hub) BroadcastAgentSummaryUpdate(agentID, summary string) {
	h.Broadcast(Frame{"type": "agent_summary_update", "agent_id": agentID, "summary": summary})
}

func (h *Hub) BroadcastOrchestratorUpdated(id string, inputTokens, outputTokens int64, totalCost float64, updatedAt string) {
	h.Broadcast(Frame{
		"type":          "orchestrator_updated",
		"id":            id,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
		"total_cost":    totalCost,
		"updated_at":    updatedAt,
	})
}

func (h *Hub) BroadcastSystemLog(level, message string) {
	h.Broadcast(Frame{"type": "system_log", "level": level, "message": message})
}

func (h *Hub) BroadcastCostAlert(severity, message string, cumulativeCost float64) {
	h.Broadcast(Frame{"type": "cost_alert", "severity": severity, "message": message, "cumulative_cost": cumulativeCost})
}

func (h *Hub) BroadcastError(message string) {
	h.Broadcast(Frame{"type": "error", "message": message})
}

// BroadcastFileTracking emits the FileTrackingBlock sub-event (category
// "file_tracking") that closes an agent command with its file-change
// dossier (§4.8).
func (h *Hub) BroadcastFileTracking(agentID string, dossier any) {
	h.Broadcast(Frame{"type": "agent_log", "category": "file_tracking", "agent_id": agentID, "payload": dossier})
}

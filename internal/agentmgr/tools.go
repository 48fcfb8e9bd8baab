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
	"encoding/json"
	"fmt"

	"github.com/teradata-labs/loomrelay/internal/llmsdk"
)

// Tools returns the eight management tools bound to the orchestrator's own
// conversation (§4.6, §9's "virtual tools registered with the LLM SDK").
// Worker-agent turns never see these: only the orchestrator's Runner is
// built with Config.Tools set to this list.
func (m *Manager) Tools() []llmsdk.ToolSpec {
	return []llmsdk.ToolSpec{
		{
			Name:        "create_agent",
			Description: "Spawn a new worker agent with its own system prompt or subagent template, returning its id, name and status once the greeting turn completes.",
			InputSchema: objectSchema(map[string]any{
				"name":              stringProp("unique name for the new agent"),
				"system_prompt":     stringProp("system prompt; omit when subagent_template is given"),
				"model":             stringProp("model alias (sonnet, haiku, fast) or a literal model id"),
				"subagent_template": stringProp("name of a .claude/agents template to load instead of system_prompt"),
				"working_dir":       stringProp("working directory for the agent's tool use"),
			}, "name"),
		},
		{
			Name:        "list_agents",
			Description: "List every worker agent owned by the orchestrator, with status and cumulative token/cost totals.",
			InputSchema: objectSchema(nil),
		},
		{
			Name:        "command_agent",
			Description: "Dispatch a command to an existing agent; the turn runs in the background and this returns a task slug immediately.",
			InputSchema: objectSchema(map[string]any{
				"agent_name": stringProp("name of the agent to command"),
				"command":    stringProp("the instruction to send"),
			}, "agent_name", "command"),
		},
		{
			Name:        "check_agent_status",
			Description: "Report an agent's current status and totals, plus a tail of its latest task's log.",
			InputSchema: objectSchema(map[string]any{
				"agent_name": stringProp("name of the agent to check"),
				"tail_count": intProp("number of log entries to return (default 10)"),
				"offset":     intProp("pagination offset into the tail"),
				"verbose":    boolProp("return raw log content instead of summaries"),
			}, "agent_name"),
		},
		{
			Name:        "delete_agent",
			Description: "Soft-delete a worker agent and forget its file tracker.",
			InputSchema: objectSchema(map[string]any{
				"agent_name": stringProp("name of the agent to delete"),
			}, "agent_name"),
		},
		{
			Name:        "interrupt_agent",
			Description: "Cancel an agent's in-flight command, if any.",
			InputSchema: objectSchema(map[string]any{
				"agent_name": stringProp("name of the agent to interrupt"),
			}, "agent_name"),
		},
		{
			Name:        "read_system_logs",
			Description: "Read paginated system log entries, optionally filtered by message substring or level.",
			InputSchema: objectSchema(map[string]any{
				"offset":           intProp("pagination offset"),
				"limit":            intProp("page size (default 50)"),
				"message_contains": stringProp("ILIKE filter on the log message"),
				"level":            stringProp("exact level filter (info, warning, error, ...)"),
			}),
		},
		{
			Name:        "report_cost",
			Description: "Report the orchestrator's cumulative token usage, cost, and context-window usage percentage.",
			InputSchema: objectSchema(nil),
		},
	}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Dispatch executes one management tool call by name, returning its result
// JSON-encoded (or a plain error string with isError set) for feeding back
// to the model as a tool_result block. It implements llmsdk.ToolExecutor.
func (m *Manager) Dispatch(ctx context.Context, name string, input map[string]any) (string, bool) {
	owner, err := m.st.GetActiveOrchestrator(ctx)
	if err != nil {
		return fmt.Sprintf("resolve active orchestrator: %v", err), true
	}

	switch name {
	case "create_agent":
		created, err := m.CreateAgent(ctx, owner.ID, CreateAgentParams{
			Name:             str(input, "name"),
			SystemPrompt:     str(input, "system_prompt"),
			Model:            str(input, "model"),
			SubagentTemplate: str(input, "subagent_template"),
			WorkingDir:       str(input, "working_dir"),
		})
		if err != nil {
			return err.Error(), true
		}
		return encode(map[string]any{"id": created.ID.String(), "name": created.Name, "status": string(created.Status)})

	case "list_agents":
		agents, err := m.ListAgents(ctx, owner.ID)
		if err != nil {
			return err.Error(), true
		}
		return encode(agents)

	case "command_agent":
		slug, err := m.CommandAgent(ctx, owner.ID, str(input, "agent_name"), str(input, "command"))
		if err != nil {
			return err.Error(), true
		}
		return encode(map[string]any{"task_slug": slug})

	case "check_agent_status":
		report, err := m.CheckAgentStatus(ctx, owner.ID, str(input, "agent_name"), integer(input, "tail_count"), integer(input, "offset"), boolean(input, "verbose"))
		if err != nil {
			return err.Error(), true
		}
		return encode(report)

	case "delete_agent":
		if err := m.DeleteAgent(ctx, owner.ID, str(input, "agent_name")); err != nil {
			return err.Error(), true
		}
		return encode(map[string]any{"deleted": str(input, "agent_name")})

	case "interrupt_agent":
		return m.InterruptAgent(str(input, "agent_name")), false

	case "read_system_logs":
		logs, err := m.ReadSystemLogs(ctx, integer(input, "offset"), integer(input, "limit"), str(input, "message_contains"), str(input, "level"))
		if err != nil {
			return err.Error(), true
		}
		return encode(logs)

	case "report_cost":
		report, err := m.ReportCost(ctx)
		if err != nil {
			return err.Error(), true
		}
		return encode(report)

	default:
		return fmt.Sprintf("unknown tool %q", name), true
	}
}

func encode(v any) (string, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("encode result: %v", err), true
	}
	return string(raw), false
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func integer(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func boolean(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

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
// Package hooks translates the six LLM lifecycle events (§4.3) into
// persisted log rows plus WS broadcasts. The six hooks are modeled as a
// type-safe, closed enum rather than bare strings, the way
// pkg/communication/interrupt/signals.go models interrupt signals — even
// though the event_type column they land in is textual at rest.
package hooks

import "fmt"

// Kind is one of the six hook lifecycle points the LLM SDK invokes.
type Kind int

const (
	PreTool Kind = iota
	PostTool
	UserPromptSubmit
	Stop
	SubagentStop
	PreCompact
)

func (k Kind) String() string {
	switch k {
	case PreTool:
		return "pre_tool"
	case PostTool:
		return "post_tool"
	case UserPromptSubmit:
		return "user_prompt_submit"
	case Stop:
		return "stop"
	case SubagentStop:
		return "subagent_stop"
	case PreCompact:
		return "pre_compact"
	default:
		return fmt.Sprintf("hook(%d)", int(k))
	}
}

// ToolCategory classifies a tool invocation for the file change tracker
// (§4.3's classification table).
type ToolCategory int

const (
	CategoryIgnored ToolCategory = iota
	CategoryModifyCandidate
	CategoryReadCandidate
)

// ClassifyTool implements the fixed tool-name -> category table.
func ClassifyTool(toolName string) ToolCategory {
	switch toolName {
	case "Write", "Edit", "MultiEdit", "Bash":
		return CategoryModifyCandidate
	case "Read":
		return CategoryReadCandidate
	default:
		return CategoryIgnored
	}
}

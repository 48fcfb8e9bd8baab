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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SlashCommand describes one "<orchestrator>/.claude/commands/*.md" file
// discovered for GET /get_orchestrator (§6.1), grounded in the
// distillation source's modules/slash_command_parser.py.
type SlashCommand struct {
	Name          string `yaml:"-"`
	Description   string `yaml:"description"`
	ArgumentHint  string `yaml:"-"`
	AllowedTools  []string `yaml:"allowed-tools"`
}

// DiscoverSlashCommands parses every "*.md" file under
// "<root>/.claude/commands/", returning one SlashCommand per file sorted
// by name. Files with no (or unreadable) frontmatter are still listed,
// with only their name set, since a missing header just means "no
// metadata for this command".
func DiscoverSlashCommands(root string) []SlashCommand {
	dir := filepath.Join(root, ".claude", "commands")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var commands []SlashCommand
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		frontmatter, _, err := splitFrontmatter(string(raw))
		if err != nil || frontmatter == "" {
			commands = append(commands, SlashCommand{Name: strings.TrimSuffix(e.Name(), ".md")})
			continue
		}

		var cmd SlashCommand
		_ = yaml.Unmarshal([]byte(frontmatter), &cmd)
		cmd.Name = strings.TrimSuffix(e.Name(), ".md")
		// argument-hint is always read as a literal string, never as YAML
		// list syntax, because it commonly contains "[bracket]"
		// placeholders that would otherwise parse as a flow sequence
		// (SPEC_FULL.md §9.1).
		cmd.ArgumentHint = rawFrontmatterValue(frontmatter, "argument-hint")
		commands = append(commands, cmd)
	}

	sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })
	return commands
}

// rawFrontmatterValue extracts the unparsed text following "key:" on its
// own line within a YAML frontmatter block, trimming surrounding
// whitespace and a single layer of matching quotes. It never invokes the
// YAML parser, so bracket/list-looking values survive as plain text.
func rawFrontmatterValue(frontmatter, key string) string {
	for _, line := range strings.Split(frontmatter, "\n") {
		trimmed := strings.TrimSpace(line)
		prefix := key + ":"
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return value
	}
	return ""
}

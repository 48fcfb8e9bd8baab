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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is a subagent template: YAML frontmatter plus a markdown body
// used as the spawned agent's system prompt (SPEC_FULL.md §9.1, grounded
// in the distillation source's modules/subagent_models.py /
// subagent_loader.py).
type Template struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
	Model       string   `yaml:"model"`
	Color       string   `yaml:"color"`

	Body string `yaml:"-"`
}

// ErrUnknownTemplate is returned by LoadTemplate when name has no matching
// file under dir, carrying the available names so the caller (the
// create_agent tool) can report them.
type ErrUnknownTemplate struct {
	Name      string
	Available []string
}

func (e *ErrUnknownTemplate) Error() string {
	return fmt.Sprintf("unknown subagent template %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// ListTemplates returns the template names available under dir (markdown
// files, name = filename without extension), sorted.
func ListTemplates(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names
}

// LoadTemplate reads "<dir>/<name>.md" and parses its frontmatter + body.
// name and description must be non-empty, and the body must be non-empty
// after trimming, matching the distillation source's validation.
func LoadTemplate(dir, name string) (*Template, error) {
	path := filepath.Join(dir, name+".md")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrUnknownTemplate{Name: name, Available: ListTemplates(dir)}
		}
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}

	tmpl, err := parseTemplate(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	if tmpl.Name == "" {
		tmpl.Name = name
	}
	if tmpl.Name == "" || tmpl.Description == "" {
		return nil, fmt.Errorf("template %s: name and description are required", name)
	}
	if strings.TrimSpace(tmpl.Body) == "" {
		return nil, fmt.Errorf("template %s: body must not be empty", name)
	}
	return tmpl, nil
}

// parseTemplate splits a "---\nyaml\n---\nbody" document and decodes the
// frontmatter into a Template.
func parseTemplate(doc string) (*Template, error) {
	frontmatter, body, err := splitFrontmatter(doc)
	if err != nil {
		return nil, err
	}
	var tmpl Template
	if frontmatter != "" {
		if err := yaml.Unmarshal([]byte(frontmatter), &tmpl); err != nil {
			return nil, fmt.Errorf("decode frontmatter: %w", err)
		}
	}
	tmpl.Body = strings.TrimSpace(body)
	return &tmpl, nil
}

// splitFrontmatter separates a "---" delimited YAML header from the
// remaining markdown body. A document with no frontmatter returns an
// empty header and the whole document as body.
func splitFrontmatter(doc string) (frontmatter, body string, err error) {
	trimmed := strings.TrimLeft(doc, "\n")
	if !strings.HasPrefix(trimmed, "---") {
		return "", doc, nil
	}
	rest := strings.TrimPrefix(trimmed, "---")
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", fmt.Errorf("unterminated frontmatter block")
	}
	frontmatter = rest[:idx]
	remainder := rest[idx+len("\n---"):]
	remainder = strings.TrimPrefix(remainder, "\n")
	return frontmatter, remainder, nil
}

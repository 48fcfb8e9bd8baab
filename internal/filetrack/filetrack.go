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
// Package filetrack watches the working directory for file changes an
// agent's tool calls produce, shelling out to git the way
// pkg/shuttle/builtin/shell_execute.go wraps exec.Command with a bounded
// timeout and captured output, and turning the result into unified diffs
// via internal/diff (§4.8).
package filetrack

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teradata-labs/loomrelay/internal/diff"
	"github.com/teradata-labs/loomrelay/internal/hooks"
)

const gitTimeout = 10 * time.Second

// ChangeKind classifies one tracked path's git status.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
)

// FileChange describes one path's state since the last commit.
type FileChange struct {
	Path    string
	Kind    ChangeKind
	Unified string
	Added   int
	Removed int
}

// Tracker observes tool invocations classified as modify-candidates and
// reports the resulting git working-tree changes. It satisfies
// hooks.FileTracker.
type Tracker struct {
	mu         sync.Mutex
	workingDir string
	runGit     func(ctx context.Context, args ...string) (string, error)

	touched   map[string]struct{}
	readSet   map[string]struct{}
	modSet    map[string]struct{}
	lastInput map[string]map[string]any
}

// New builds a Tracker rooted at workingDir.
func New(workingDir string) *Tracker {
	t := &Tracker{
		workingDir: workingDir,
		touched:    make(map[string]struct{}),
		readSet:    make(map[string]struct{}),
		modSet:     make(map[string]struct{}),
		lastInput:  make(map[string]map[string]any),
	}
	t.runGit = t.execGit
	return t
}

// Observe classifies toolName per §4.3's table and, when toolInput carries
// a resolvable path, records it into the read or modified set (absolute,
// deduplicated by set membership per §4.3). Bash is a modify candidate but
// often has no single `file_path`; it is recorded by tool name only since
// no static parse of a shell command line reliably extracts the paths it
// touched — the git-status-based Changes() below is the source of truth
// for what actually changed on disk.
func (t *Tracker) Observe(toolName string, toolInput map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touched[toolName] = struct{}{}

	path, ok := extractPath(toolInput)
	if !ok {
		return
	}
	abs := t.resolve(path)

	switch hooks.ClassifyTool(toolName) {
	case hooks.CategoryModifyCandidate:
		t.modSet[abs] = struct{}{}
		t.lastInput[abs] = toolInput
	case hooks.CategoryReadCandidate:
		t.readSet[abs] = struct{}{}
	}
}

// extractPath pulls the conventional `file_path` (or `path`) key a Write/
// Edit/MultiEdit/Read tool input carries.
func extractPath(toolInput map[string]any) (string, bool) {
	for _, key := range []string{"file_path", "path"} {
		if v, ok := toolInput[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// resolve normalizes path to an absolute path under the tracker's working
// directory, following symlinks where possible (§4.8 "symlink-aware
// normalization").
func (t *Tracker) resolve(path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(t.workingDir, abs)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs)
}

// ReadPaths returns the deduplicated, sorted set of paths observed under a
// read-candidate tool.
func (t *Tracker) ReadPaths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.readSet)
}

// ModifiedPaths returns the deduplicated, sorted set of paths observed
// under a modify-candidate tool with a resolvable path.
func (t *Tracker) ModifiedPaths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.modSet)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) execGit(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = t.workingDir
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, errBuf.String())
	}
	return out.String(), nil
}

// Changes reports the current working-tree changes as unified diffs,
// sorted by path.
func (t *Tracker) Changes(ctx context.Context) ([]FileChange, error) {
	statusOut, err := t.runGit(ctx, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	var changes []FileChange
	for _, line := range strings.Split(statusOut, "\n") {
		if strings.TrimSpace(line) == "" || len(line) < 4 {
			continue
		}
		code := strings.TrimSpace(line[:2])
		path := strings.TrimSpace(line[3:])
		kind := classifyStatus(code)

		var body string
		var added, removed int
		switch kind {
		case ChangeAdded:
			after, rerr := os.ReadFile(filepath.Join(t.workingDir, path))
			if rerr == nil {
				body, added, removed = diff.GenerateDiff("", string(after), path)
			}
		case ChangeDeleted:
			before, _ := t.runGit(ctx, "show", "HEAD:"+path)
			body, added, removed = diff.GenerateDiff(before, "", path)
		default:
			before, _ := t.runGit(ctx, "show", "HEAD:"+path)
			after, rerr := os.ReadFile(filepath.Join(t.workingDir, path))
			if rerr == nil {
				body, added, removed = diff.GenerateDiff(before, string(after), path)
			}
		}

		changes = append(changes, FileChange{Path: path, Kind: kind, Unified: body, Added: added, Removed: removed})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func classifyStatus(code string) ChangeKind {
	switch {
	case strings.Contains(code, "A") || code == "??":
		return ChangeAdded
	case strings.Contains(code, "D"):
		return ChangeDeleted
	case strings.Contains(code, "R"):
		return ChangeRenamed
	default:
		return ChangeModified
	}
}

// Reset clears the touched-tool set and the read/modified path sets.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touched = make(map[string]struct{})
	t.readSet = make(map[string]struct{})
	t.modSet = make(map[string]struct{})
	t.lastInput = make(map[string]map[string]any)
}

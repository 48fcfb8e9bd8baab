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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverSlashCommands_ParsesArgumentHintAsLiteral(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".claude", "commands")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.md"), []byte(
		"---\ndescription: deploy the service\nargument-hint: [environment] [--dry-run]\nallowed-tools:\n  - Bash\n---\nRun the deploy.\n",
	), 0o644))

	commands := DiscoverSlashCommands(root)
	require.Len(t, commands, 1)
	assert.Equal(t, "deploy", commands[0].Name)
	assert.Equal(t, "deploy the service", commands[0].Description)
	assert.Equal(t, "[environment] [--dry-run]", commands[0].ArgumentHint)
	assert.Equal(t, []string{"Bash"}, commands[0].AllowedTools)
}

func TestDiscoverSlashCommands_MissingDirReturnsNil(t *testing.T) {
	assert.Nil(t, DiscoverSlashCommands(t.TempDir()))
}

func TestDiscoverSlashCommands_SortsByName(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".claude", "commands")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zeta.md"), []byte("no frontmatter here\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.md"), []byte("---\ndescription: a\n---\nbody\n"), 0o644))

	commands := DiscoverSlashCommands(root)
	require.Len(t, commands, 2)
	assert.Equal(t, "alpha", commands[0].Name)
	assert.Equal(t, "zeta", commands[1].Name)
}

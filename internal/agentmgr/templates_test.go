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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".md"), []byte(doc), 0o644))
}

func TestLoadTemplate_ParsesFrontmatterAndBody(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "reviewer", "---\nname: reviewer\ndescription: reviews diffs\ntools:\n  - Read\n  - Grep\nmodel: haiku\ncolor: blue\n---\nYou review code changes carefully.\n")

	tmpl, err := LoadTemplate(dir, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", tmpl.Name)
	assert.Equal(t, "reviews diffs", tmpl.Description)
	assert.Equal(t, []string{"Read", "Grep"}, tmpl.Tools)
	assert.Equal(t, "haiku", tmpl.Model)
	assert.Equal(t, "You review code changes carefully.", tmpl.Body)
}

func TestLoadTemplate_UnknownNameReturnsAvailableList(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "known", "---\nname: known\ndescription: d\n---\nbody\n")

	_, err := LoadTemplate(dir, "missing")
	require.Error(t, err)
	var unknown *ErrUnknownTemplate
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []string{"known"}, unknown.Available)
}

func TestLoadTemplate_RejectsEmptyBody(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "hollow", "---\nname: hollow\ndescription: d\n---\n   \n")

	_, err := LoadTemplate(dir, "hollow")
	assert.Error(t, err)
}

func TestListTemplates_SortsNames(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "zebra", "---\nname: zebra\ndescription: d\n---\nbody\n")
	writeTemplate(t, dir, "alpha", "---\nname: alpha\ndescription: d\n---\nbody\n")

	assert.Equal(t, []string{"alpha", "zebra"}, ListTemplates(dir))
}

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
// Package diff provides unified-diff rendering used by the file change
// tracker for every changed path: the tracker reads the old content with
// `git show HEAD:<path>` and the new content from disk, and renders the
// diff here; `git diff` itself is not run.
package diff

import (
	"fmt"
	"strings"

	dmp "github.com/sergi/go-diff/diffmatchpatch"
)

// DiffType represents the type of diff line.
type DiffType int

const (
	DiffEqual DiffType = iota
	DiffInsert
	DiffDelete
)

// DiffLine represents a line in a diff.
type DiffLine struct {
	Type    DiffType
	Content string
}

// Lines returns a line-by-line diff between a and b.
func Lines(a, b string) []DiffLine {
	differ := dmp.New()
	aLines, bLines, lineArr := differ.DiffLinesToChars(a, b)
	diffs := differ.DiffMain(aLines, bLines, false)
	diffs = differ.DiffCharsToLines(diffs, lineArr)

	var out []DiffLine
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			var t DiffType
			switch d.Type {
			case dmp.DiffInsert:
				t = DiffInsert
			case dmp.DiffDelete:
				t = DiffDelete
			default:
				t = DiffEqual
			}
			out = append(out, DiffLine{Type: t, Content: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

// Unified renders a, b as a minimal unified diff body (no file headers),
// one `+`/`-`/` ` prefixed line per changed or context line.
func Unified(a, b string) string {
	var sb strings.Builder
	for _, l := range Lines(a, b) {
		switch l.Type {
		case DiffInsert:
			sb.WriteString("+" + l.Content + "\n")
		case DiffDelete:
			sb.WriteString("-" + l.Content + "\n")
		default:
			sb.WriteString(" " + l.Content + "\n")
		}
	}
	return sb.String()
}

// GenerateDiff generates a unified diff between old and new content,
// returning the diff body plus the number of added (+) and removed (-)
// lines — the counts the file change tracker persists per modified path.
func GenerateDiff(oldContent, newContent, filename string) (body string, added int, removed int) {
	if oldContent == newContent {
		return "", 0, 0
	}

	header := fmt.Sprintf("--- a/%s\n+++ b/%s\n", filename, filename)
	var sb strings.Builder
	sb.WriteString(header)

	for _, l := range Lines(oldContent, newContent) {
		switch l.Type {
		case DiffInsert:
			sb.WriteString("+" + l.Content + "\n")
			added++
		case DiffDelete:
			sb.WriteString("-" + l.Content + "\n")
			removed++
		default:
			sb.WriteString(" " + l.Content + "\n")
		}
	}
	return sb.String(), added, removed
}

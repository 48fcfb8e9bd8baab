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
	"strings"
	"time"
	"unicode"
)

const maxSlugLen = 50

// taskSlug derives a kebab-case, timestamped task slug from a command's
// leading words, capped at 50 characters (§4.6's "command execution
// invariants").
func taskSlug(command string, now time.Time) string {
	head := firstWords(command, 6)
	kebab := kebabCase(head)
	suffix := "-" + now.UTC().Format("20060102150405")

	budget := maxSlugLen - len(suffix)
	if budget < 1 {
		budget = 1
	}
	if len(kebab) > budget {
		kebab = kebab[:budget]
		kebab = strings.TrimRight(kebab, "-")
	}
	if kebab == "" {
		kebab = "task"
	}
	return kebab + suffix
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// kebabCase lowercases s and replaces runs of non-alphanumeric characters
// with a single hyphen, trimming leading/trailing hyphens.
func kebabCase(s string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

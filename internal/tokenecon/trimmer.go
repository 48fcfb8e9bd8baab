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
// Package tokenecon implements the six cooperating token-economy
// sub-modules of §4.4: context trimmer, response cache, rate limiter, cost
// tracker, model selector, and session budget.
package tokenecon

// Role is a chat message's role for trimming purposes.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the minimal shape the trimmer and cache operate over.
type Message struct {
	Role Role
	Text string
}

// TrimMode selects which resource the trimmer prioritizes preserving.
type TrimMode string

const (
	ModeBalanced        TrimMode = "balanced"
	ModeTokenPriority   TrimMode = "token_priority"
	ModeMessagePriority TrimMode = "message_priority"
)

// TrimmerConfig parameterizes Trim.
type TrimmerConfig struct {
	MaxMessages    int
	MaxTokens      int
	PreserveSystem bool // default true
	Mode           TrimMode
}

// DefaultTrimmerConfig returns §4.4.1's defaults.
func DefaultTrimmerConfig(maxMessages, maxTokens int) TrimmerConfig {
	return TrimmerConfig{MaxMessages: maxMessages, MaxTokens: maxTokens, PreserveSystem: true, Mode: ModeBalanced}
}

// TrimStats reports the trimmer's analysis of one Trim call.
type TrimStats struct {
	TotalMessages int
	TotalTokens   int
	OverLimit     bool
	RoleCounts    map[Role]int
}

// EstimateTokens implements the fixed heuristic max(1, len(text)/4).
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// Trim partitions system vs non-system messages, walks non-system
// newest-to-oldest accumulating under the effective limits, then restores
// chronological order with system messages prepended (§4.4.1).
func Trim(messages []Message, cfg TrimmerConfig) ([]Message, TrimStats) {
	var system, rest []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	maxMessages, maxTokens := cfg.MaxMessages, cfg.MaxTokens
	if cfg.Mode == ModeTokenPriority {
		maxMessages = int(float64(maxMessages) * 0.8)
		maxTokens = int(float64(maxTokens) * 0.8)
	}

	var kept []Message
	tokenTotal, msgCount := 0, 0
	for i := len(rest) - 1; i >= 0; i-- {
		m := rest[i]
		t := EstimateTokens(m.Text)
		if maxMessages > 0 && msgCount >= maxMessages {
			break
		}
		if maxTokens > 0 && tokenTotal+t > maxTokens && msgCount > 0 {
			break
		}
		kept = append(kept, m)
		tokenTotal += t
		msgCount++
	}
	// kept was accumulated newest-first; reverse to chronological.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	out := make([]Message, 0, len(system)+len(kept))
	if cfg.PreserveSystem {
		out = append(out, system...)
	}
	out = append(out, kept...)

	roleCounts := make(map[Role]int)
	totalTokens := 0
	for _, m := range messages {
		roleCounts[m.Role]++
		totalTokens += EstimateTokens(m.Text)
	}
	stats := TrimStats{
		TotalMessages: len(messages),
		TotalTokens:   totalTokens,
		OverLimit:     (cfg.MaxMessages > 0 && len(messages) > cfg.MaxMessages) || (cfg.MaxTokens > 0 && totalTokens > cfg.MaxTokens),
		RoleCounts:    roleCounts,
	}
	return out, stats
}

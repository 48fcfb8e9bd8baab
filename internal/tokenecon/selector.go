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
package tokenecon

import (
	"strings"
	"sync"
)

// ModelTier is the selector's verdict: cheap/mid/premium capacity classes
// (§4.4.5, Haiku/Sonnet/Opus in the original).
type ModelTier string

const (
	TierCheap   ModelTier = "cheap"   // simple task: fast/cheap model
	TierMid     ModelTier = "mid"     // default: moderate complexity
	TierPremium ModelTier = "premium" // complex work: highest-capacity model
)

// weightedKeyword is one scoring-table entry.
type weightedKeyword struct {
	keyword string
	weight  int
}

// simpleIndicators and complexIndicators are the fixed keyword scoring
// tables carried verbatim from the original implementation's
// modules/model_selector.py, evaluated the way
// pkg/collaboration/expression_evaluator.go scores a small fixed rule
// table against free-form input rather than parsing a grammar.
var simpleIndicators = []weightedKeyword{
	{"read", 2}, {"open", 2}, {"cat", 2}, {"ls", 2},
	{"list", 2}, {"show", 2}, {"view", 2}, {"display", 2},

	{"explain", 2}, {"what is", 3}, {"what's", 2},
	{"describe", 2}, {"tell me about", 3},
	{"documentation", 3}, {"docs", 2}, {"help", 2},

	{"config", 2}, {"setting", 2}, {"environment", 2},
	{".env", 3}, {"variable", 2}, {"parameter", 2},

	{"status", 2}, {"check", 2}, {"verify", 2},
	{"confirm", 2}, {"test", 2}, {"validate", 2},

	{"run", 2}, {"execute", 2}, {"start", 2},
	{"stop", 2}, {"restart", 2}, {"clear", 2},

	{"version", 3}, {"usage", 2}, {"example", 2},

	{"typo", 3}, {"spacing", 3}, {"indent", 3},
	{"rename", 2}, {"move", 2}, {"copy", 2},
}

var complexIndicators = []weightedKeyword{
	{"architect", 5}, {"design", 3}, {"refactor", 4},
	{"restructure", 4}, {"redesign", 4}, {"framework", 3},

	{"analyze", 3}, {"optimize", 3}, {"performance", 3},
	{"security", 3}, {"vulnerability", 4}, {"audit", 3},

	{"integrate", 3}, {"migration", 4}, {"upgrade", 3},
	{"synchronize", 3}, {"orchestrate", 3}, {"coordinate", 3},

	{"debug", 2}, {"investigate", 3}, {"root cause", 4},
	{"diagnose", 3}, {"troubleshoot", 3}, {"trace", 2},

	{"strategy", 4}, {"roadmap", 4}, {"planning", 3},
	{"proposal", 3}, {"recommendation", 3}, {"decision", 2},

	{"multiple", 2}, {"several", 2}, {"various", 2},
	{"entire", 2}, {"whole", 2}, {"comprehensive", 3},

	{"complex", 5}, {"complicated", 4}, {"advanced", 3},
	{"sophisticated", 4}, {"intricate", 4},
}

const (
	complexScoreThreshold = 6
	simpleScoreThreshold  = 5
	simpleComplexCeiling  = 2

	shortMessageLength = 50
	longMessageLength  = 500
	shortQuestionLength = 100
)

func weighTable(lower string, table []weightedKeyword) int {
	total := 0
	for _, kw := range table {
		if strings.Contains(lower, kw.keyword) {
			total += kw.weight
		}
	}
	return total
}

// Select scores a task description against the complex/simple keyword
// tables plus the length/code-fence/question modifiers and returns which
// model tier should service it (§4.4.5).
func Select(taskDescription string) ModelTier {
	lower := strings.ToLower(taskDescription)
	length := len(taskDescription)

	simpleScore := weighTable(lower, simpleIndicators)
	complexScore := weighTable(lower, complexIndicators)

	switch {
	case length < shortMessageLength:
		simpleScore += 3
	case length > longMessageLength:
		complexScore += 2
	}

	if strings.Contains(lower, "```") || strings.Contains(lower, "function") || strings.Contains(lower, "class") {
		complexScore += 3
	}

	if strings.HasSuffix(strings.TrimSpace(lower), "?") && length < shortQuestionLength {
		simpleScore += 2
	}

	switch {
	case complexScore >= complexScoreThreshold || (strings.Contains(lower, "architect") && strings.Contains(lower, "design")):
		return TierPremium
	case simpleScore >= simpleScoreThreshold && complexScore < simpleComplexCeiling:
		return TierCheap
	default:
		return TierMid
	}
}

// ModelFor resolves a tier to the configured model name.
func ModelFor(tier ModelTier, cheapModel, midModel, premiumModel string) string {
	switch tier {
	case TierCheap:
		return cheapModel
	case TierPremium:
		return premiumModel
	default:
		return midModel
	}
}

// Stats is a snapshot of a Selector's per-tier usage counts plus the
// estimated cost reduction relative to an all-mid baseline (§4.4.5),
// mirroring model_selector.py's get_usage_stats.
type Stats struct {
	CheapCount              int
	MidCount                int
	PremiumCount            int
	CostReductionPercentage float64
}

// Selector wraps the stateless Select function with per-tier usage
// counters for observability, matching the original ModelSelector's
// haiku_count/sonnet_count/opus_count bookkeeping.
type Selector struct {
	mu                                 sync.Mutex
	cheapCount, midCount, premiumCount int
}

// NewSelector builds a Selector with zeroed counters.
func NewSelector() *Selector {
	return &Selector{}
}

// Select scores text and records which tier was chosen.
func (s *Selector) Select(text string) ModelTier {
	tier := Select(text)
	s.mu.Lock()
	switch tier {
	case TierCheap:
		s.cheapCount++
	case TierPremium:
		s.premiumCount++
	default:
		s.midCount++
	}
	s.mu.Unlock()
	return tier
}

// relativeCost weights, relative to the mid tier, used by Stats' cost
// reduction estimate: cheap costs ~5% of mid, premium costs ~5x mid.
const (
	cheapRelativeCost   = 0.05
	midRelativeCost     = 1.0
	premiumRelativeCost = 5.0
)

// Stats reports the running per-tier counts and the estimated cost
// reduction versus a baseline where every request used the mid tier.
func (s *Selector) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.cheapCount + s.midCount + s.premiumCount
	if total == 0 {
		return Stats{}
	}

	actualCost := float64(s.cheapCount)*cheapRelativeCost + float64(s.midCount)*midRelativeCost + float64(s.premiumCount)*premiumRelativeCost
	baselineCost := float64(total) * midRelativeCost
	reduction := 0.0
	if baselineCost > 0 {
		reduction = (baselineCost - actualCost) / baselineCost * 100
	}

	return Stats{
		CheapCount:              s.cheapCount,
		MidCount:                s.midCount,
		PremiumCount:            s.premiumCount,
		CostReductionPercentage: reduction,
	}
}

// Reset zeroes every counter.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cheapCount, s.midCount, s.premiumCount = 0, 0, 0
}

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

import "sync"

// ModelPricing is a per-million-token input/output price pair.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// pricingTable carries the fixed per-model rates (§4.4.4), identical to
// the pricing the LLM adapter falls back to when usage metadata omits
// cost. Sonnet is the fallback for unrecognized model names.
var pricingTable = map[string]ModelPricing{
	"claude-haiku-4-5-20251001":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-opus-4-5-20250929":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
}

var defaultPricing = pricingTable["claude-sonnet-4-5-20250929"]

// PricingFor returns the pricing for model, falling back to Sonnet
// pricing for unrecognized model names.
func PricingFor(model string) ModelPricing {
	if p, ok := pricingTable[model]; ok {
		return p
	}
	return defaultPricing
}

// Cost computes the USD cost of a token usage under the given model's
// pricing.
func Cost(model string, inputTokens, outputTokens int64) float64 {
	p := PricingFor(model)
	return float64(inputTokens)/1_000_000*p.InputPerMillion + float64(outputTokens)/1_000_000*p.OutputPerMillion
}

// AlertLevel is the cost tracker's threshold-crossing classification.
type AlertLevel int

const (
	AlertNone AlertLevel = iota
	AlertWarning
	AlertCritical
)

// CostTracker accumulates session-lifetime cost and fires each threshold
// at most once, per §4.4.4.
type CostTracker struct {
	mu sync.Mutex

	alertThreshold    float64
	criticalThreshold float64

	inputTokens  int64
	outputTokens int64
	totalCost    float64

	alertFired    bool
	criticalFired bool
}

// NewCostTracker builds a tracker with the given alert/critical USD
// thresholds.
func NewCostTracker(alertThreshold, criticalThreshold float64) *CostTracker {
	return &CostTracker{alertThreshold: alertThreshold, criticalThreshold: criticalThreshold}
}

// Record adds a turn's usage to the running total and reports whether a
// threshold was just crossed (fires once per threshold for the tracker's
// lifetime).
func (c *CostTracker) Record(model string, inputTokens, outputTokens int64) (cost float64, crossed AlertLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cost = Cost(model, inputTokens, outputTokens)
	c.inputTokens += inputTokens
	c.outputTokens += outputTokens
	c.totalCost += cost

	if c.totalCost >= c.criticalThreshold && !c.criticalFired {
		c.criticalFired = true
		return cost, AlertCritical
	}
	if c.totalCost >= c.alertThreshold && !c.alertFired {
		c.alertFired = true
		return cost, AlertWarning
	}
	return cost, AlertNone
}

// Totals returns a snapshot of the accumulated usage.
func (c *CostTracker) Totals() (inputTokens, outputTokens int64, totalCost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputTokens, c.outputTokens, c.totalCost
}

package tokenecon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCost_KnownModelPricing(t *testing.T) {
	got := Cost("claude-sonnet-4-5-20250929", 1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, got, 1e-9)
}

func TestPricingFor_UnknownModelFallsBackToSonnet(t *testing.T) {
	assert.Equal(t, PricingFor("claude-sonnet-4-5-20250929"), PricingFor("some-unreleased-model"))
}

func TestCostTracker_FiresEachThresholdOnce(t *testing.T) {
	ct := NewCostTracker(10.0, 50.0)

	warnings, criticals := 0, 0
	// Each call books $3 (1,000,000 input tokens at Sonnet pricing).
	for i := 0; i < 20; i++ {
		_, crossed := ct.Record("claude-sonnet-4-5-20250929", 1_000_000, 0)
		switch crossed {
		case AlertWarning:
			warnings++
		case AlertCritical:
			criticals++
		}
	}

	assert.Equal(t, 1, warnings, "warning threshold must fire exactly once")
	assert.Equal(t, 1, criticals, "critical threshold must fire exactly once")

	inTok, outTok, total := ct.Totals()
	assert.Equal(t, int64(20_000_000), inTok)
	assert.Equal(t, int64(0), outTok)
	assert.InDelta(t, 60.0, total, 1e-9)
}

package tokenecon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUnderBudget(t *testing.T) {
	rl := NewRateLimiter(1000, 0.8)
	waited := rl.CheckAndWait(500)
	assert.Zero(t, waited)
	rl.RecordUsage(500)
	assert.Equal(t, 500, rl.WindowUsage())
}

func TestRateLimiter_WaitsWhenOverBudget(t *testing.T) {
	base := time.Unix(0, 0)
	cur := base
	rl := NewRateLimiter(100, 0.8)
	rl.now = func() time.Time { return cur }

	var slept []time.Duration
	rl.sleep = func(d time.Duration) {
		slept = append(slept, d)
		cur = cur.Add(d)
	}

	rl.RecordUsage(100)
	waited := rl.CheckAndWait(50)

	assert.Len(t, slept, 1)
	assert.Equal(t, 61*time.Second, slept[0])
	assert.Equal(t, 61*time.Second, waited)
}

// TestRateLimiter_BacksOffAtConfiguredThreshold covers §8 property 7: cap
// 1000/min, threshold 0.8; after recording 800 tokens, a projected spend
// of 300 more (1100/1000 = 1.1 >= 0.8) must back off even though it is
// still under the raw cap.
func TestRateLimiter_BacksOffAtConfiguredThreshold(t *testing.T) {
	base := time.Unix(0, 0)
	cur := base
	rl := NewRateLimiter(1000, 0.8)
	rl.now = func() time.Time { return cur }

	var slept []time.Duration
	rl.sleep = func(d time.Duration) {
		slept = append(slept, d)
		cur = cur.Add(d)
	}

	rl.RecordUsage(800)
	waited := rl.CheckAndWait(300)

	assert.Len(t, slept, 1)
	assert.Equal(t, 61*time.Second, waited)
}

// TestRateLimiter_HigherThresholdAllowsMoreHeadroom shows the threshold
// is actually wired: the same projected ratio that backs off at 0.8
// passes through untouched at 1.0 (equivalent to the old hard-cap-only
// behavior).
func TestRateLimiter_HigherThresholdAllowsMoreHeadroom(t *testing.T) {
	rl := NewRateLimiter(1000, 1.0)
	rl.RecordUsage(800)
	waited := rl.CheckAndWait(150)
	assert.Zero(t, waited)
}

func TestRateLimiter_PrunesOldSamples(t *testing.T) {
	base := time.Unix(0, 0)
	cur := base
	rl := NewRateLimiter(100, 0.8)
	rl.now = func() time.Time { return cur }

	rl.RecordUsage(90)
	cur = cur.Add(61 * time.Second)
	assert.Equal(t, 0, rl.WindowUsage())
}

func TestRateLimiter_ResetClearsWindow(t *testing.T) {
	rl := NewRateLimiter(1000, 0.8)
	rl.RecordUsage(500)
	rl.Reset()
	assert.Equal(t, 0, rl.WindowUsage())
}

func TestRateLimiter_DefaultThresholdAppliedWhenNonPositive(t *testing.T) {
	rl := NewRateLimiter(1000, 0)
	assert.Equal(t, defaultBackoffThreshold, rl.threshold)
}

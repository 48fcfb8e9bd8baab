package tokenecon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionBudget_WarningsFireOnceEach(t *testing.T) {
	b := NewSessionBudget(1000)

	var levels []BudgetWarningLevel
	for i := 0; i < 10; i++ {
		level, err := b.Spend(100)
		require.NoError(t, err)
		if level != BudgetWarningNone {
			levels = append(levels, level)
		}
	}
	assert.Equal(t, []BudgetWarningLevel{BudgetWarning50, BudgetWarning75, BudgetWarning90}, levels)
}

func TestSessionBudget_HardCapReturnsError(t *testing.T) {
	b := NewSessionBudget(100)
	_, err := b.Spend(150)
	assert.Error(t, err)
	var budgetErr *ErrBudgetExceeded
	assert.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 0, b.Remaining())
}

func TestSessionBudget_DefaultsToFiftyThousand(t *testing.T) {
	b := NewSessionBudget(0)
	assert.Equal(t, DefaultSessionBudgetTokens, b.Remaining())
}

// TestSessionBudget_CheckBudget_S5 covers §8 scenario S5: with a 1000
// token cap, ten turns each actually spending 120 tokens cross the cap on
// the ninth turn (cumulative 1080); the next check_budget call must then
// refuse further spend without booking anything extra itself.
func TestSessionBudget_CheckBudget_S5(t *testing.T) {
	b := NewSessionBudget(1000)

	for i := 0; i < 8; i++ {
		allowed, msg := b.CheckBudget(120)
		require.True(t, allowed, "turn %d should be allowed", i+1)
		require.Empty(t, msg)
		_, err := b.Spend(120)
		require.NoError(t, err)
	}
	assert.Equal(t, 960, b.Spent())

	allowed, msg := b.CheckBudget(120)
	require.True(t, allowed, "ninth turn should still be allowed pre-spend")
	_, err := b.Spend(120)
	require.Error(t, err)
	assert.Equal(t, 1080, b.Spent())

	allowed, msg = b.CheckBudget(120)
	assert.False(t, allowed)
	assert.Contains(t, msg, "BUDGET EXCEEDED")
}

func TestSessionBudget_CheckBudget_DoesNotBookTokens(t *testing.T) {
	b := NewSessionBudget(1000)
	allowed, msg := b.CheckBudget(500)
	assert.True(t, allowed)
	assert.Empty(t, msg)
	assert.Equal(t, 0, b.Spent())
}

func TestWithinTaskCap_EnforcesFixedCeilings(t *testing.T) {
	assert.True(t, WithinTaskCap(TaskKindSimple, 4_999))
	assert.False(t, WithinTaskCap(TaskKindSimple, 5_001))
	assert.Equal(t, 15_000, CapFor(TaskKindModerate))
	assert.Equal(t, 30_000, CapFor(TaskKindComplex))
}

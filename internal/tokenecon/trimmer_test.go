package tokenecon

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens_FixedHeuristic(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 25, EstimateTokens(string(make([]byte, 100))))
}

func TestTrim_PreservesSystemAndChronologicalOrder(t *testing.T) {
	var messages []Message
	messages = append(messages, Message{Role: RoleSystem, Text: "you are an assistant"})
	for i := 0; i < 20; i++ {
		messages = append(messages, Message{Role: RoleUser, Text: fmt.Sprintf("message %d", i)})
	}

	cfg := DefaultTrimmerConfig(5, 1000)
	kept, stats := Trim(messages, cfg)

	assert.Equal(t, RoleSystem, kept[0].Role)
	assert.LessOrEqual(t, len(kept), 6) // system + up to 5 kept
	// chronological: later kept messages must have higher indices than earlier ones.
	lastIdx := -1
	for _, m := range kept[1:] {
		var idx int
		fmt.Sscanf(m.Text, "message %d", &idx)
		assert.Greater(t, idx, lastIdx)
		lastIdx = idx
	}
	assert.Equal(t, 21, stats.TotalMessages)
}

func TestTrim_TokenPriorityModeReducesLimitsByEighty(t *testing.T) {
	var messages []Message
	for i := 0; i < 10; i++ {
		messages = append(messages, Message{Role: RoleUser, Text: "abcdefgh"}) // 2 tokens each
	}
	cfg := TrimmerConfig{MaxMessages: 10, MaxTokens: 1000, PreserveSystem: true, Mode: ModeTokenPriority}
	kept, _ := Trim(messages, cfg)
	assert.LessOrEqual(t, len(kept), 8) // 10 * 0.8
}

func TestTrim_DropsSystemWhenNotPreserved(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Text: "sys"},
		{Role: RoleUser, Text: "hi"},
	}
	cfg := TrimmerConfig{MaxMessages: 10, MaxTokens: 1000, PreserveSystem: false, Mode: ModeBalanced}
	kept, _ := Trim(messages, cfg)
	for _, m := range kept {
		assert.NotEqual(t, RoleSystem, m.Role)
	}
}

package llmsdk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_StreamEmitsScriptedTurn(t *testing.T) {
	fc := &FakeClient{Turns: []FakeTurn{NewTextTurn("sess-1", "hello", 10, 20)}}

	s, err := fc.Stream(context.Background(), "hi", StreamOptions{})
	require.NoError(t, err)

	var got []StreamMessage
	for m := range s.Messages() {
		got = append(got, m)
	}
	require.NoError(t, s.Err())
	require.Len(t, got, 3)

	result, ok := got[2].(*ResultMessage)
	require.True(t, ok)
	assert.Equal(t, 10, result.InputTokens)
	assert.Equal(t, 20, result.OutputTokens)
	assert.Equal(t, []string{"hi"}, fc.Calls)
}

func TestFakeClient_InterruptStopsStream(t *testing.T) {
	fc := &FakeClient{Turns: []FakeTurn{NewTextTurn("sess-1", "hello", 10, 20)}}
	s, err := fc.Stream(context.Background(), "hi", StreamOptions{})
	require.NoError(t, err)

	s.Interrupt()
	for range s.Messages() {
	}
}

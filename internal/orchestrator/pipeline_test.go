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
package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loomrelay/internal/llmsdk"
	"github.com/teradata-labs/loomrelay/internal/store"
	"github.com/teradata-labs/loomrelay/internal/tokenecon"
)

// fakeHub records every broadcast the pipeline makes, for assertions on
// frame ordering and content (§8 S2/S4/S6).
type fakeHub struct {
	mu     sync.Mutex
	frames []string
	typing []bool
	logs   []string
}

func (f *fakeHub) record(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, kind)
}

func (f *fakeHub) BroadcastOrchestratorChat(message any) { f.record("orchestrator_chat") }
func (f *fakeHub) BroadcastChatStream(chunk string, isComplete bool) {
	f.record("chat_stream")
}
func (f *fakeHub) BroadcastChatTyping(isTyping bool) {
	f.mu.Lock()
	f.typing = append(f.typing, isTyping)
	f.mu.Unlock()
	f.record("chat_typing")
}
func (f *fakeHub) BroadcastThinkingBlock(payload any) { f.record("thinking_block") }
func (f *fakeHub) BroadcastToolUseBlock(payload any)  { f.record("tool_use_block") }
func (f *fakeHub) BroadcastOrchestratorUpdated(id string, inputTokens, outputTokens int64, totalCost float64, updatedAt string) {
	f.record("orchestrator_updated")
}
func (f *fakeHub) BroadcastCostAlert(severity, message string, cumulativeCost float64) {
	f.record("cost_alert")
}
func (f *fakeHub) BroadcastSystemLog(level, message string) {
	f.mu.Lock()
	f.logs = append(f.logs, message)
	f.mu.Unlock()
	f.record("system_log")
}
func (f *fakeHub) BroadcastError(message string) {
	f.mu.Lock()
	f.logs = append(f.logs, message)
	f.mu.Unlock()
	f.record("error")
}

func (f *fakeHub) frameKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	copy(out, f.frames)
	return out
}

func newTestPipeline(t *testing.T, sdk llmsdk.Client, hub *fakeHub, economyEnabled bool) (*Pipeline, store.Store, *store.Orchestrator) {
	t.Helper()
	st := store.NewMemStore()
	orch, err := st.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)

	opts := PipelineOptions{
		PrimaryModel: "primary-model",
		FastModel:    "fast-model",
		TrimConfig:   tokenecon.TrimmerConfig{MaxMessages: 50, MaxTokens: 4000},
	}
	if economyEnabled {
		opts.EconomyEnabled = true
		opts.Cache = tokenecon.NewCache(time.Minute, 16)
		opts.Limiter = tokenecon.NewRateLimiter(100000, 0.8)
		opts.Costs = tokenecon.NewCostTracker(10, 50)
	}
	p := NewPipeline(st, hub, sdk, orch, opts)
	return p, st, orch
}

// TestHandleUserMessage_S2_FirstTurnFrameOrdering exercises the literal
// scenario S2 (§8): first turn after boot produces typing(true), a text
// chunk, stream-complete, an updated-totals frame, typing(false).
func TestHandleUserMessage_S2_FirstTurnFrameOrdering(t *testing.T) {
	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{llmsdk.NewTextTurn("sess-1", "hi there", 10, 5)}}
	hub := &fakeHub{}
	p, st, orch := newTestPipeline(t, sdk, hub, true)

	require.NoError(t, p.HandleUserMessage(context.Background(), "hi"))

	frames := hub.frameKinds()
	require.Contains(t, frames, "chat_typing")
	require.Contains(t, frames, "orchestrator_chat")
	require.Contains(t, frames, "chat_stream")
	require.Contains(t, frames, "orchestrator_updated")
	assert.Equal(t, []bool{true, false}, hub.typing)

	updated, err := st.GetOrchestratorByID(context.Background(), orch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), updated.InputTokens)
	assert.Equal(t, int64(5), updated.OutputTokens)
	require.NotNil(t, updated.SessionID)
	assert.Equal(t, "sess-1", *updated.SessionID)
}

// TestHandleUserMessage_InterruptsPriorTurn covers property 3/S4: a second
// send_chat while a turn is in flight interrupts the first via the runner
// and emits a system_log before the new turn's frames.
func TestHandleUserMessage_InterruptsPriorTurn(t *testing.T) {
	hub := &fakeHub{}
	blockCh := make(chan llmsdk.StreamMessage)
	sdk := &blockingThenFastSDK{block: blockCh, fast: llmsdk.NewTextTurn("sess-2", "done", 1, 1)}
	p, _, _ := newTestPipeline(t, sdk, hub, false)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.HandleUserMessage(context.Background(), "first (slow)")
	}()

	// Give the first turn's Runner time to register itself busy.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		busy := p.runner != nil && p.runner.IsBusy()
		p.mu.Unlock()
		if busy {
			break
		}
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, p.HandleUserMessage(context.Background(), "second (interrupts first)"))
	close(blockCh)
	<-errCh

	assert.Contains(t, hub.logs, "prior turn interrupted by new message")
}

// blockingThenFastSDK's first Stream call blocks on block until closed (or
// interrupted); every subsequent call runs the fast turn immediately.
type blockingThenFastSDK struct {
	mu    sync.Mutex
	calls int
	block <-chan llmsdk.StreamMessage
	fast  llmsdk.FakeTurn
}

func (s *blockingThenFastSDK) Stream(ctx context.Context, prompt string, opts llmsdk.StreamOptions) (llmsdk.Stream, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	if !first {
		fake := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{s.fast}}
		return fake.Stream(ctx, prompt, opts)
	}

	ctx, cancel := context.WithCancel(ctx)
	st := &blockingStream{ch: make(chan llmsdk.StreamMessage), cancel: cancel}
	go func() {
		defer close(st.ch)
		select {
		case <-ctx.Done():
			st.err = ctx.Err()
		case <-s.block:
		}
	}()
	return st, nil
}

type blockingStream struct {
	ch     chan llmsdk.StreamMessage
	cancel context.CancelFunc
	err    error
}

func (s *blockingStream) Messages() <-chan llmsdk.StreamMessage { return s.ch }
func (s *blockingStream) Interrupt()                            { s.cancel() }
func (s *blockingStream) Err() error                             { return s.err }

// TestHandleUserMessage_CacheHitSkipsSDKStream covers S6: a second turn
// whose user text and preceding-context digest exactly match a cached
// entry short-circuits before opening a new SDK stream. Two independent,
// freshly-seeded pipelines sharing one cache isolate "identical context"
// (the cache-key mechanism under test) from conversation-history growth
// (a separate, unrelated concern covered by the chat-history tests).
func TestHandleUserMessage_CacheHitSkipsSDKStream(t *testing.T) {
	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{llmsdk.NewTextTurn("sess-3", "4", 1, 1)}}
	hub := &fakeHub{}
	cache := tokenecon.NewCache(time.Minute, 16)

	opts := PipelineOptions{
		PrimaryModel:   "primary-model",
		FastModel:      "fast-model",
		TrimConfig:     tokenecon.TrimmerConfig{MaxMessages: 50, MaxTokens: 4000},
		EconomyEnabled: true,
		Cache:          cache,
		Limiter:        tokenecon.NewRateLimiter(100000, 0.8),
		Costs:          tokenecon.NewCostTracker(10, 50),
	}

	st1 := store.NewMemStore()
	orch1, err := st1.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	p1 := NewPipeline(st1, hub, sdk, orch1, opts)
	require.NoError(t, p1.HandleUserMessage(context.Background(), "what is 2+2?"))
	assert.Len(t, sdk.Calls, 1)

	st2 := store.NewMemStore()
	orch2, err := st2.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	p2 := NewPipeline(st2, hub, sdk, orch2, opts)
	require.NoError(t, p2.HandleUserMessage(context.Background(), "what is 2+2?"))

	assert.Len(t, sdk.Calls, 1, "second identical turn should be served from cache, not open a new stream")

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
}

// TestHandleUserMessage_AbortsTurnWhenBudgetExceeded covers §7/§8 S5: a
// session budget too small for even the first turn's estimate must abort
// the turn before the SDK stream ever opens, broadcasting an error frame
// instead of running the model.
func TestHandleUserMessage_AbortsTurnWhenBudgetExceeded(t *testing.T) {
	sdk := &llmsdk.FakeClient{Turns: []llmsdk.FakeTurn{llmsdk.NewTextTurn("sess-4", "hi there", 10, 5)}}
	hub := &fakeHub{}
	st := store.NewMemStore()
	orch, err := st.CreateOrchestrator(context.Background(), &store.Orchestrator{SystemPrompt: "x", WorkingDir: t.TempDir()})
	require.NoError(t, err)

	opts := PipelineOptions{
		PrimaryModel:   "primary-model",
		FastModel:      "fast-model",
		TrimConfig:     tokenecon.TrimmerConfig{MaxMessages: 50, MaxTokens: 4000},
		EconomyEnabled: true,
		Budget:         tokenecon.NewSessionBudget(1),
	}
	p := NewPipeline(st, hub, sdk, orch, opts)

	err = p.HandleUserMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session budget exceeded")
	assert.Empty(t, sdk.Calls, "budget-exceeded turn must never open an SDK stream")
	assert.Contains(t, hub.frameKinds(), "error")

	logs, err := st.ListSystemLogs(context.Background(), 0, 10, "", "")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "BUDGET EXCEEDED")
}

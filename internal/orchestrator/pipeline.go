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
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/llmsdk"
	"github.com/teradata-labs/loomrelay/internal/store"
	"github.com/teradata-labs/loomrelay/internal/tokenecon"
)

// Hub is the subset of wshub.Hub the pipeline broadcasts through.
type Hub interface {
	BroadcastOrchestratorChat(message any)
	BroadcastChatStream(chunk string, isComplete bool)
	BroadcastChatTyping(isTyping bool)
	BroadcastThinkingBlock(payload any)
	BroadcastToolUseBlock(payload any)
	BroadcastOrchestratorUpdated(id string, inputTokens, outputTokens int64, totalCost float64, updatedAt string)
	BroadcastCostAlert(severity, message string, cumulativeCost float64)
	BroadcastSystemLog(level, message string)
	BroadcastError(message string)
}

// Selector picks a model tier for a user message; satisfied by
// tokenecon.Select plus tokenecon.ModelFor.
type Selector func(text string) tokenecon.ModelTier

// Pipeline drives the orchestrator's own three-phase chat turn (§4.7): one
// *Pipeline exists per process, wrapping the single persisted Orchestrator
// row.
type Pipeline struct {
	st    store.Store
	hub   Hub
	sdk   llmsdk.Client
	log   *zap.Logger

	primaryModel, fastModel, premiumModel string
	startedWithSession                   bool
	tools                                 []llmsdk.ToolSpec
	execute                               llmsdk.ToolExecutor

	trimCfg tokenecon.TrimmerConfig
	cache   *tokenecon.Cache
	limiter *tokenecon.RateLimiter
	costs   *tokenecon.CostTracker
	budget  *tokenecon.SessionBudget
	economyEnabled bool

	mu      sync.Mutex
	orch    *store.Orchestrator
	runner  *Runner

	// sessionCaptured gates OnSessionToken's persist-once-per-orchestrator
	// semantics (§3's "session token ... set exactly once"). sysMsgMetaCaptured
	// separately gates the one-time system_message_info metadata merge
	// (§4.7 execution step 5) — the two events happen together on the wire
	// but are logically independent, so they get independent flags.
	sessionCaptured    bool
	sysMsgMetaCaptured bool
}

// NewPipeline builds a Pipeline bound to one orchestrator row.
func NewPipeline(st store.Store, hub Hub, sdk llmsdk.Client, orch *store.Orchestrator, opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		st:                 st,
		hub:                hub,
		sdk:                sdk,
		log:                opts.Log,
		primaryModel:       opts.PrimaryModel,
		fastModel:          opts.FastModel,
		premiumModel:       opts.PremiumModel,
		startedWithSession: orch.SessionID != nil,
		trimCfg:            opts.TrimConfig,
		cache:              opts.Cache,
		limiter:            opts.Limiter,
		costs:              opts.Costs,
		budget:             opts.Budget,
		economyEnabled:     opts.EconomyEnabled,
		tools:              opts.Tools,
		execute:            opts.Execute,
		orch:               orch,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// PipelineOptions carries the token-economy components and model names a
// Pipeline is wired against.
type PipelineOptions struct {
	PrimaryModel   string
	FastModel      string
	PremiumModel   string
	TrimConfig     tokenecon.TrimmerConfig
	Cache          *tokenecon.Cache
	Limiter        *tokenecon.RateLimiter
	Costs          *tokenecon.CostTracker
	Budget         *tokenecon.SessionBudget
	EconomyEnabled bool
	Tools          []llmsdk.ToolSpec
	Execute        llmsdk.ToolExecutor
	Log            *zap.Logger
}

// HandleUserMessage runs one full turn: pre-execution, streamed execution,
// post-execution (§4.7).
func (p *Pipeline) HandleUserMessage(ctx context.Context, text string) error {
	// Pre-execution.
	if p.cache != nil {
		p.cache.ClearPattern(fmt.Sprintf("chat_history:%s:", p.orch.ID))
	}

	userRow, err := p.st.InsertChatMessage(ctx, &store.ChatMessage{
		OrchestratorID: p.orch.ID,
		SenderType:     store.PartyUser,
		ReceiverType:   store.PartyOrchestrator,
		Message:        text,
	})
	if err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}
	_ = userRow

	p.mu.Lock()
	if p.runner != nil && p.runner.IsBusy() {
		p.runner.Interrupt()
		if p.hub != nil {
			p.hub.BroadcastSystemLog("warning", "prior turn interrupted by new message")
		}
	}
	tier := tokenecon.Select(text)
	model := tokenecon.ModelFor(tier, p.fastModel, p.primaryModel, p.premiumModel)
	turn := &turnSink{Pipeline: p}
	runner := NewRunner(Config{
		SDK:          p.sdk,
		Model:        model,
		SystemPrompt: p.orch.SystemPrompt,
		WorkingDir:   p.orch.WorkingDir,
		Sink:         turn,
		Tools:        p.tools,
		Execute:      p.execute,
	})
	p.runner = runner
	p.mu.Unlock()

	// Execution.
	if p.hub != nil {
		p.hub.BroadcastChatTyping(true)
	}

	recent, _ := p.st.ChatHistory(ctx, p.orch.ID, 20, 0, nil)

	cacheKey := ""
	if p.cache != nil {
		cacheKey = tokenecon.CacheKey(text, recentContextDigest(recent, 5))
		if cached, ok := p.cache.Get(cacheKey); ok {
			if response, ok := cached.(string); ok {
				return p.replayCachedResponse(ctx, response)
			}
		}
	}

	estimate := contextTokenEstimate(recent, p.trimCfg) + tokenecon.EstimateTokens(text)

	if p.economyEnabled && p.budget != nil {
		if allowed, message := p.budget.CheckBudget(estimate); !allowed {
			return p.abortOverBudget(ctx, message)
		}
	}

	if p.economyEnabled && p.limiter != nil {
		p.limiter.CheckAndWait(estimate)
	}

	err = runner.Run(ctx, p.sessionToken(), text)

	if p.hub != nil {
		p.hub.BroadcastChatTyping(false)
		p.hub.BroadcastChatStream("", true)
	}
	if err != nil {
		return fmt.Errorf("run turn: %w", err)
	}

	// Post-execution cache population: §4.7 execution step 2 caches
	// {message: response_text, ...}, not the user's own prompt.
	if p.cache != nil && cacheKey != "" && turn.text.Len() > 0 {
		p.cache.Set(cacheKey, turn.text.String())
	}
	return nil
}

// replayCachedResponse implements the cache-hit short-circuit (§4.7
// execution step 2): persists and broadcasts the cached response as a
// normal orchestrator chat row, then completes the turn without opening an
// SDK stream.
func (p *Pipeline) replayCachedResponse(ctx context.Context, response string) error {
	row, err := p.st.InsertChatMessage(ctx, &store.ChatMessage{
		OrchestratorID: p.orch.ID,
		SenderType:     store.PartyOrchestrator,
		ReceiverType:   store.PartyUser,
		Message:        response,
		Metadata:       store.Metadata{"type": "text_chunk", "cached": true},
	})
	if err != nil {
		return fmt.Errorf("persist cached response: %w", err)
	}
	if p.hub != nil {
		p.hub.BroadcastOrchestratorChat(map[string]any{"id": row.ID.String(), "message": response, "cached": true})
		p.hub.BroadcastChatStream("", true)
		p.hub.BroadcastChatTyping(false)
	}
	return nil
}

// abortOverBudget implements §7's budget-exceeded path: check_budget
// returned allowed=false, so the turn is abandoned before the LLM SDK is
// ever called, and the user-visible message is surfaced over the hub and
// logged.
func (p *Pipeline) abortOverBudget(ctx context.Context, message string) error {
	if p.hub != nil {
		p.hub.BroadcastChatTyping(false)
		p.hub.BroadcastChatStream("", true)
		p.hub.BroadcastError(message)
	}
	if _, err := p.st.InsertSystemLog(ctx, &store.SystemLog{Level: "error", Message: message}); err != nil {
		p.log.Warn("persist budget-exceeded system log", zap.Error(err))
	}
	return fmt.Errorf("session budget exceeded: %s", message)
}

// turnSink scopes one turn's accumulated response text (for cache
// population) on top of the Pipeline's normal per-block persistence; the
// Pipeline itself is long-lived and shared across turns, so this
// accumulator cannot live on it directly.
type turnSink struct {
	*Pipeline
	text strings.Builder
}

func (t *turnSink) OnText(ctx context.Context, text string) error {
	t.text.WriteString(text)
	return t.Pipeline.OnText(ctx, text)
}

var _ Sink = (*turnSink)(nil)

func (p *Pipeline) sessionToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.orch.SessionID != nil {
		return *p.orch.SessionID
	}
	return ""
}

// OnSessionToken implements Sink: §4.7 post-execution step 1's
// guarded-null-only session persistence.
func (p *Pipeline) OnSessionToken(ctx context.Context, token string) error {
	p.mu.Lock()
	started := p.startedWithSession
	captured := p.sessionCaptured
	p.sessionCaptured = true
	p.mu.Unlock()

	if captured || started {
		return nil
	}
	ok, err := p.st.UpdateOrchestratorSession(ctx, p.orch.ID, token)
	if err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}
	if ok {
		p.mu.Lock()
		p.orch.SessionID = &token
		p.mu.Unlock()
	}
	return nil
}

// OnSystemMessage implements orchestrator.SystemMessageObserver: §4.7
// execution step 5's "capture once per process {session_id, cwd, tools,
// model, subtype} and merge into orchestrator metadata as
// system_message_info; do not emit UI output" bullet.
func (p *Pipeline) OnSystemMessage(ctx context.Context, msg *llmsdk.SystemMessage) error {
	p.mu.Lock()
	already := p.sysMsgMetaCaptured
	p.sysMsgMetaCaptured = true
	p.mu.Unlock()

	if already {
		return nil
	}

	info := map[string]any{
		"session_id": msg.SessionID,
		"cwd":        msg.Cwd,
		"tools":      msg.Tools,
		"model":      msg.Model,
		"subtype":    msg.Subtype,
	}
	if err := p.st.MergeOrchestratorMetadata(ctx, p.orch.ID, store.Metadata{"system_message_info": info}); err != nil {
		return fmt.Errorf("merge system_message_info: %w", err)
	}
	return nil
}

// OnUsage implements Sink: §4.7 post-execution steps 2-3.
func (p *Pipeline) OnUsage(ctx context.Context, inputTokens, outputTokens int64, costUSD float64) error {
	if p.economyEnabled && p.limiter != nil {
		p.limiter.RecordUsage(int(inputTokens + outputTokens))
	}
	if p.economyEnabled && p.costs != nil {
		_, crossed := p.costs.Record(p.primaryModel, inputTokens, outputTokens)
		if crossed != tokenecon.AlertNone && p.hub != nil {
			level := "warning"
			if crossed == tokenecon.AlertCritical {
				level = "critical"
			}
			_, _, cumulative := p.costs.Totals()
			p.hub.BroadcastCostAlert(level, "cost threshold crossed", cumulative)
		}
	}
	if p.economyEnabled && p.budget != nil {
		if _, err := p.budget.Spend(int(inputTokens + outputTokens)); err != nil {
			p.log.Warn("session token budget exceeded", zap.Error(err))
		}
	}

	rows, totals, err := p.st.UpdateOrchestratorCosts(ctx, p.orch.ID, store.CostUpdate{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         costUSD,
	})
	if err != nil {
		return fmt.Errorf("update orchestrator costs: %w", err)
	}
	if rows > 0 && p.hub != nil {
		p.hub.BroadcastOrchestratorUpdated(p.orch.ID.String(), totals.InputTokens, totals.OutputTokens, totals.TotalCost, time.Now().Format(time.RFC3339Nano))
	}
	return nil
}

// OnText implements Sink: §4.7 execution step 5's text-block handling.
func (p *Pipeline) OnText(ctx context.Context, text string) error {
	row, err := p.st.InsertChatMessage(ctx, &store.ChatMessage{
		OrchestratorID: p.orch.ID,
		SenderType:     store.PartyOrchestrator,
		ReceiverType:   store.PartyUser,
		Message:        text,
		Metadata:       store.Metadata{"type": "text_chunk"},
	})
	if err != nil {
		return fmt.Errorf("persist text chunk: %w", err)
	}
	if p.hub != nil {
		p.hub.BroadcastOrchestratorChat(map[string]any{"id": row.ID.String(), "message": text})
	}
	return nil
}

// OnThinking implements Sink: §4.7 execution step 5's thinking-block
// handling.
func (p *Pipeline) OnThinking(ctx context.Context, text string) error {
	_, err := p.st.InsertSystemLog(ctx, &store.SystemLog{
		Level:    "info",
		Message:  text,
		Metadata: store.Metadata{"orchestrator_agent_id": p.orch.ID.String(), "kind": "thinking_block"},
	})
	if err != nil {
		return fmt.Errorf("persist thinking block: %w", err)
	}
	if p.hub != nil {
		p.hub.BroadcastThinkingBlock(map[string]any{"text": text, "orchestrator_agent_id": p.orch.ID.String()})
	}
	return nil
}

// OnToolUse implements Sink: §4.7 execution step 5's tool-use-block
// handling.
func (p *Pipeline) OnToolUse(ctx context.Context, name string, input map[string]any, id string) error {
	payload := store.Metadata{
		"tool_name":             name,
		"tool_input":            input,
		"tool_use_id":           id,
		"orchestrator_agent_id": p.orch.ID.String(),
	}
	meta := store.Metadata{"kind": "tool_use_block"}
	for k, v := range payload {
		meta[k] = v
	}
	_, err := p.st.InsertSystemLog(ctx, &store.SystemLog{
		Level:    "info",
		Message:  fmt.Sprintf("tool_use:%s", name),
		Metadata: meta,
	})
	if err != nil {
		return fmt.Errorf("persist tool use block: %w", err)
	}
	if p.hub != nil {
		p.hub.BroadcastToolUseBlock(payload)
	}
	return nil
}

var _ Sink = (*Pipeline)(nil)
var _ SystemMessageObserver = (*Pipeline)(nil)

// ChatHistoryEntry is one normalized, chronologically merged row from
// LoadChatHistory: either a chat message or an orchestrator system log
// (thinking/tool-use), flattened to strings per §4.7's loader contract.
type ChatHistoryEntry struct {
	ID        string
	Kind      string // "chat" | "thinking_block" | "tool_use_block"
	Message   string
	Timestamp string
}

// LoadChatHistory fetches the last limit chat messages plus the
// orchestrator's thinking/tool-use system logs, merges, and sorts them
// chronologically, caching the result under chat_history:{owner}:{limit}
// when a cache is configured.
func (p *Pipeline) LoadChatHistory(ctx context.Context, limit int) ([]ChatHistoryEntry, int, error) {
	cacheKey := fmt.Sprintf("chat_history:%s:%d", p.orch.ID, limit)
	if p.cache != nil {
		if cached, ok := p.cache.Get(cacheKey); ok {
			if entries, ok := cached.([]ChatHistoryEntry); ok {
				turns, _ := p.st.ChatTurnCount(ctx, p.orch.ID)
				return entries, turns, nil
			}
		}
	}

	messages, err := p.st.ChatHistory(ctx, p.orch.ID, limit, 0, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("chat history: %w", err)
	}
	logs, err := p.st.ListSystemLogs(ctx, 0, limit, "", "")
	if err != nil {
		return nil, 0, fmt.Errorf("system logs: %w", err)
	}
	turns, err := p.st.ChatTurnCount(ctx, p.orch.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("chat turn count: %w", err)
	}

	var entries []ChatHistoryEntry
	for _, m := range messages {
		entries = append(entries, ChatHistoryEntry{
			ID:        m.ID.String(),
			Kind:      "chat",
			Message:   m.Message,
			Timestamp: m.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	for _, l := range logs {
		kind, ok := l.Metadata["kind"].(string)
		if !ok || !strings.HasSuffix(kind, "_block") {
			continue
		}
		entries = append(entries, ChatHistoryEntry{
			ID:        l.ID.String(),
			Kind:      kind,
			Message:   l.Message,
			Timestamp: l.Timestamp.Format(time.RFC3339Nano),
		})
	}

	sortEntriesByTimestamp(entries)

	if p.cache != nil {
		p.cache.Set(cacheKey, entries)
	}
	return entries, turns, nil
}

// recentContextDigest serializes the last n messages into a stable string
// for the response-cache key, per §4.7 execution step 2's "user text plus
// the last 5 messages' serialized form".
func recentContextDigest(messages []*store.ChatMessage, n int) string {
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(string(m.SenderType))
		sb.WriteString(":")
		sb.WriteString(m.Message)
		sb.WriteString("|")
	}
	return sb.String()
}

// contextTokenEstimate implements §4.7 execution step 3's "sum over
// recent 20 messages / 4" heuristic, trimmed against the pipeline's
// configured context-trimmer limits before estimating.
func contextTokenEstimate(messages []*store.ChatMessage, cfg tokenecon.TrimmerConfig) int {
	trimMessages := make([]tokenecon.Message, 0, len(messages))
	for _, m := range messages {
		role := tokenecon.RoleUser
		if m.SenderType == store.PartyOrchestrator {
			role = tokenecon.RoleAssistant
		}
		trimMessages = append(trimMessages, tokenecon.Message{Role: role, Text: m.Message})
	}
	trimmed, _ := tokenecon.Trim(trimMessages, cfg)
	total := 0
	for _, m := range trimmed {
		total += tokenecon.EstimateTokens(m.Text)
	}
	return total
}

func sortEntriesByTimestamp(entries []ChatHistoryEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Timestamp < entries[j-1].Timestamp; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

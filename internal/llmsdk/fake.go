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
package llmsdk

import (
	"context"
	"sync"
)

// FakeClient is an in-memory Client for tests. Each call to Stream pops the
// next scripted Turn (or loops the last one if Turns is exhausted).
type FakeClient struct {
	mu    sync.Mutex
	Turns []FakeTurn
	next  int

	// Calls records every prompt passed to Stream, for assertions.
	Calls []string
}

// FakeTurn scripts one Stream call's output.
type FakeTurn struct {
	Messages     []StreamMessage
	SessionToken string
	Err          error
}

func (f *FakeClient) Stream(ctx context.Context, prompt string, opts StreamOptions) (Stream, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, prompt)
	var turn FakeTurn
	if len(f.Turns) > 0 {
		idx := f.next
		if idx >= len(f.Turns) {
			idx = len(f.Turns) - 1
		} else {
			f.next++
		}
		turn = f.Turns[idx]
	}
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stream := &fakeStream{ch: make(chan StreamMessage, len(turn.Messages)+1), cancel: cancel}

	go func() {
		defer close(stream.ch)
		if turn.Err != nil {
			stream.err = turn.Err
			if opts.Hooks.Stop != nil {
				_ = opts.Hooks.Stop(ctx, "error", 1, 0)
			}
			return
		}
		if opts.Hooks.UserPromptSubmit != nil {
			_ = opts.Hooks.UserPromptSubmit(ctx, prompt)
		}
		for _, m := range turn.Messages {
			select {
			case <-ctx.Done():
				stream.err = ctx.Err()
				return
			case stream.ch <- m:
			}
			if am, ok := m.(*AssistantMessage); ok {
				for _, b := range am.Blocks {
					if tu, ok := b.(ToolUseBlock); ok {
						if opts.Hooks.PreTool != nil {
							_ = opts.Hooks.PreTool(ctx, tu.Name, tu.Input, tu.ID)
						}
						if opts.Hooks.PostTool != nil {
							_ = opts.Hooks.PostTool(ctx, tu.Name, "", false, tu.ID)
						}
					}
				}
			}
		}
		if opts.Hooks.Stop != nil {
			_ = opts.Hooks.Stop(ctx, "end_turn", 1, 0)
		}
	}()

	return stream, nil
}

type fakeStream struct {
	ch     chan StreamMessage
	cancel context.CancelFunc
	err    error
}

func (s *fakeStream) Messages() <-chan StreamMessage { return s.ch }
func (s *fakeStream) Interrupt()                     { s.cancel() }
func (s *fakeStream) Err() error                     { return s.err }

// NewTextTurn is a convenience constructor for the common case: one text
// block and a result message carrying the given usage.
func NewTextTurn(sessionToken, text string, inputTokens, outputTokens int) FakeTurn {
	cost := float64(inputTokens)/1_000_000*3.0 + float64(outputTokens)/1_000_000*15.0
	return FakeTurn{
		SessionToken: sessionToken,
		Messages: []StreamMessage{
			&SystemMessage{SessionID: sessionToken, Subtype: "init"},
			&AssistantMessage{Blocks: []AssistantBlock{TextBlock{Text: text}}},
			&ResultMessage{SessionID: sessionToken, TotalCostUSD: &cost, InputTokens: inputTokens, OutputTokens: outputTokens},
		},
	}
}

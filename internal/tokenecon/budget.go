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
	"fmt"
	"sync"
)

// TaskKind caps per-task spend independently of the session-wide budget
// (§4.4.6's "per-task-kind caps").
type TaskKind string

const (
	TaskKindSimple  TaskKind = "simple"
	TaskKindModerate TaskKind = "moderate"
	TaskKindComplex TaskKind = "complex"
)

// taskKindCaps are the fixed per-task-kind token ceilings.
var taskKindCaps = map[TaskKind]int{
	TaskKindSimple:   5_000,
	TaskKindModerate: 15_000,
	TaskKindComplex:  30_000,
}

// DefaultSessionBudgetTokens is the hard per-session cap (§4.4.6).
const DefaultSessionBudgetTokens = 50_000

// BudgetWarningLevel reports which of the three warning thresholds a
// session has most recently crossed.
type BudgetWarningLevel int

const (
	BudgetWarningNone BudgetWarningLevel = iota
	BudgetWarning50
	BudgetWarning75
	BudgetWarning90
)

// SessionBudget enforces a hard session-lifetime token cap plus one-shot
// 50/75/90% warnings, per §4.4.6.
type SessionBudget struct {
	mu sync.Mutex

	hardCap int
	spent   int

	warned50, warned75, warned90 bool
}

// NewSessionBudget builds a budget with the given hard cap (use
// DefaultSessionBudgetTokens when the caller has no override).
func NewSessionBudget(hardCap int) *SessionBudget {
	if hardCap <= 0 {
		hardCap = DefaultSessionBudgetTokens
	}
	return &SessionBudget{hardCap: hardCap}
}

// ErrBudgetExceeded is returned by Spend once the hard cap has been hit.
type ErrBudgetExceeded struct {
	Spent int
	Cap   int
}

func (e *ErrBudgetExceeded) Error() string {
	return "session token budget exceeded"
}

// Spend books tokens against the session budget, returning the
// newly-crossed warning level (if any) and an error once the hard cap
// would be exceeded. The spend that pushes past the cap is still booked
// so callers can report the overage, mirroring the original's
// fail-open-then-report semantics for the final turn.
func (b *SessionBudget) Spend(tokens int) (BudgetWarningLevel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.spent += tokens
	level := BudgetWarningNone

	ratio := float64(b.spent) / float64(b.hardCap)
	switch {
	case ratio >= 0.9 && !b.warned90:
		b.warned90, b.warned75, b.warned50 = true, true, true
		level = BudgetWarning90
	case ratio >= 0.75 && !b.warned75:
		b.warned75, b.warned50 = true, true
		level = BudgetWarning75
	case ratio >= 0.5 && !b.warned50:
		b.warned50 = true
		level = BudgetWarning50
	}

	if b.spent > b.hardCap {
		return level, &ErrBudgetExceeded{Spent: b.spent, Cap: b.hardCap}
	}
	return level, nil
}

// CheckBudget implements §4.4.6/§7's pre-spend gate: reports whether
// spending estimated more tokens this turn would stay within the hard cap,
// without booking them (booking happens separately via Spend once the
// turn's actual usage is known). Once allowed is false, the caller must
// surface the returned message to the user and abort the turn without
// making the LLM SDK call (§7, §8 S5).
func (b *SessionBudget) CheckBudget(estimated int) (allowed bool, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	projected := b.spent + estimated
	if projected > b.hardCap {
		return false, fmt.Sprintf(
			"BUDGET EXCEEDED: session token budget of %d tokens exceeded (spent=%d, estimated=%d)",
			b.hardCap, b.spent, estimated,
		)
	}
	return true, ""
}

// Remaining reports the tokens left before the hard cap, never negative.
func (b *SessionBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.spent >= b.hardCap {
		return 0
	}
	return b.hardCap - b.spent
}

// Spent reports the running total.
func (b *SessionBudget) Spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// CapFor returns the fixed per-task-kind ceiling.
func CapFor(kind TaskKind) int {
	return taskKindCaps[kind]
}

// WithinTaskCap reports whether spentOnTask tokens are still within
// kind's per-task ceiling.
func WithinTaskCap(kind TaskKind, spentOnTask int) bool {
	ceiling, ok := taskKindCaps[kind]
	if !ok {
		return true
	}
	return spentOnTask <= ceiling
}

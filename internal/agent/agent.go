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
// Package agent holds the status domain and turn-coordinator interface
// shared by the orchestrator and every worker agent it spawns.
package agent

import "context"

// Status is the lifecycle status shared by orchestrators and agents (§3).
type Status string

const (
	StatusIdle      Status = "idle"
	StatusExecuting Status = "executing"
	StatusWaiting   Status = "waiting"
	StatusBlocked   Status = "blocked"
	StatusComplete  Status = "complete"
)

// Info is a tabular summary of one agent, as returned by the list_agents
// tool and the GET /list_agents endpoint.
type Info struct {
	ID     string
	Name   string
	Status Status
}

// Coordinator is the interface a single streamed turn is run through,
// whether that turn belongs to the orchestrator or to a worker agent.
// It captures exactly the surface the three-phase turn pipeline and the
// command_agent/interrupt_agent tools need: start one turn, interrupt a
// running one, and report whether one is in flight.
type Coordinator interface {
	// Run executes one turn against the LLM SDK, streaming blocks through
	// the message pump, and returns once the stream's terminal result
	// message has been processed (or the turn was interrupted).
	Run(ctx context.Context, sessionToken, prompt string) error

	// IsBusy reports whether a turn is currently executing.
	IsBusy() bool

	// Interrupt cancels an in-flight turn. It is a no-op (not an error) if
	// no turn is running.
	Interrupt()
}

// ErrInterrupted is returned by Coordinator.Run when a turn was cancelled
// mid-stream by a newer turn or an explicit interrupt_agent call.
var ErrInterrupted = &InterruptedError{}

// InterruptedError indicates a turn was interrupted before completion.
type InterruptedError struct{}

func (e *InterruptedError) Error() string { return "turn interrupted" }

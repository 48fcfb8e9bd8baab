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
// Package pubsub provides the generic, typed change-event envelope shared
// by the store adapter and the WebSocket hub.
package pubsub

import "time"

// EventType represents the kind of change a change-event describes.
type EventType int

const (
	// CreatedEvent indicates a new item was created.
	CreatedEvent EventType = iota
	// UpdatedEvent indicates an existing item was updated.
	UpdatedEvent
	// DeletedEvent indicates an item was deleted.
	DeletedEvent
)

func (t EventType) String() string {
	switch t {
	case CreatedEvent:
		return "created"
	case UpdatedEvent:
		return "updated"
	case DeletedEvent:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event wraps a change of some entity type T with its kind and the instant
// it was produced. Every WebSocket frame the hub emits is ultimately
// derived from one of these, which is why it carries its own Timestamp
// rather than leaving that to the transport layer.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// NewCreatedEvent creates a new "created" event.
func NewCreatedEvent[T any](payload T) Event[T] {
	return Event[T]{Type: CreatedEvent, Payload: payload, Timestamp: time.Now()}
}

// NewUpdatedEvent creates a new "updated" event.
func NewUpdatedEvent[T any](payload T) Event[T] {
	return Event[T]{Type: UpdatedEvent, Payload: payload, Timestamp: time.Now()}
}

// NewDeletedEvent creates a new "deleted" event.
func NewDeletedEvent[T any](payload T) Event[T] {
	return Event[T]{Type: DeletedEvent, Payload: payload, Timestamp: time.Now()}
}

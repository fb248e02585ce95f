// Package event implements the typed event layer between the push
// connection and the entity store: decoding raw frames into a closed
// set of domain events and dispatching them to registered handlers.
package event

import (
	"encoding/json"
	"time"

	"github.com/swarmdeck/swarmdeck/internal/domain"
)

// Event type tags recognized by the router. Unrecognized tags are
// routed to a default path and ignored, so server-added types degrade
// gracefully.
const (
	TypeCardCreated      = "card.created"
	TypeCardUpdated      = "card.updated"
	TypeCardDeleted      = "card.deleted"
	TypeWorkerCreated    = "worker.created"
	TypeWorkerUpdated    = "worker.updated"
	TypeWorkerDeleted    = "worker.deleted"
	TypeProjectCreated   = "project.created"
	TypeProjectUpdated   = "project.updated"
	TypeProjectDeleted   = "project.deleted"
	TypeLoopStarted      = "loop.started"
	TypeLoopProgress     = "loop.progress"
	TypeLoopPaused       = "loop.paused"
	TypeLoopCompleted    = "loop.completed"
	TypeLoopFailed       = "loop.failed"
	TypeQueueUpdated     = "queue.updated"
	TypeDecisionRequired = "decision.required"
	TypeQuestionAsked    = "question.asked"
	TypePong             = "pong"
)

// Envelope is the inbound wire frame. The payload shape under Data is
// determined by the Type tag.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	ProjectID string          `json:"projectId,omitempty"`
	CardID    string          `json:"cardId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event is the interface all routed events implement.
type Event interface {
	// EventType returns the wire tag, e.g. "card.updated".
	EventType() string

	// Timestamp returns when the server emitted the event.
	Timestamp() time.Time
}

// baseEvent provides the common fields. Embed it in concrete events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string, at time.Time) baseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return baseEvent{eventType: eventType, timestamp: at}
}

// CardUpserted carries a complete card snapshot for card.created and
// card.updated.
type CardUpserted struct {
	baseEvent
	Card domain.Card
}

// CardDeleted signals explicit removal of a card.
type CardDeleted struct {
	baseEvent
	CardID string
}

// WorkerUpserted carries a complete worker snapshot.
type WorkerUpserted struct {
	baseEvent
	Worker domain.Worker
}

// WorkerDeleted signals explicit removal of a worker.
type WorkerDeleted struct {
	baseEvent
	WorkerID string
}

// ProjectUpserted carries a complete project snapshot.
type ProjectUpserted struct {
	baseEvent
	Project domain.Project
}

// ProjectDeleted signals explicit removal of a project.
type ProjectDeleted struct {
	baseEvent
	ProjectID string
}

// LoopUpdated carries a complete loop snapshot for every loop.* tag.
// The tag distinguishes the lifecycle moment; the payload shape is the
// same for all of them.
type LoopUpdated struct {
	baseEvent
	Loop domain.Loop
}

// QueueUpdated signals that the server-side work queue changed. The
// payload is opaque to the sync layer and forwarded as raw JSON.
type QueueUpdated struct {
	baseEvent
	ProjectID string
	Data      json.RawMessage
}

// DecisionRequired signals that a card is blocked on an operator
// decision.
type DecisionRequired struct {
	baseEvent
	CardID string
	Data   json.RawMessage
}

// QuestionAsked signals that a worker asked the operator a question.
type QuestionAsked struct {
	baseEvent
	CardID string
	Data   json.RawMessage
}

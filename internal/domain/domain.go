// Package domain defines the entity model shared by the sync layer,
// the REST client, and the dashboard: cards, execution loops, workers,
// projects, and streamed output lines. Entities are complete snapshots
// as sent by the server; the client never constructs partial versions.
package domain

import (
	"slices"
	"strings"
	"time"
)

// LoopStatus is the lifecycle status of an execution loop.
type LoopStatus string

const (
	LoopRunning   LoopStatus = "running"
	LoopPaused    LoopStatus = "paused"
	LoopCompleted LoopStatus = "completed"
	LoopStopped   LoopStatus = "stopped"
	LoopFailed    LoopStatus = "failed"
)

// WorkerStatus is the availability status of a worker agent.
// Transitions are server-driven; the client never computes them.
type WorkerStatus string

const (
	WorkerIdle    WorkerStatus = "idle"
	WorkerBusy    WorkerStatus = "busy"
	WorkerOffline WorkerStatus = "offline"
)

// Card is a work item moving through the development lifecycle.
// State values are defined by the workflow package; the field is kept
// as a string here so domain has no dependency on workflow.
type Card struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	State          string     `json:"state"`
	Iteration      int        `json:"iteration"`
	CostUSD        float64    `json:"cost_usd"`
	Labels         []string   `json:"labels,omitempty"`
	Priority       int        `json:"priority"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StateChangedAt time.Time  `json:"state_changed_at"`
	Deadline       *time.Time `json:"deadline,omitempty"`
}

// EntityID returns the card's id.
func (c Card) EntityID() string { return c.ID }

// ModifiedAt returns the card's last-update timestamp.
func (c Card) ModifiedAt() time.Time { return c.UpdatedAt }

// HasLabel reports whether the card carries the given label
// (case-insensitive).
func (c Card) HasLabel(label string) bool {
	return slices.ContainsFunc(c.Labels, func(l string) bool {
		return strings.EqualFold(l, label)
	})
}

// Overdue reports whether the card has a deadline in the past.
func (c Card) Overdue(now time.Time) bool {
	return c.Deadline != nil && c.Deadline.Before(now)
}

// LoopConfig is the configuration snapshot an execution loop was
// started with.
type LoopConfig struct {
	MaxIterations        int     `json:"max_iterations"`
	MaxCostUSD           float64 `json:"max_cost_usd"`
	MaxConsecutiveErrors int     `json:"max_consecutive_errors"`
}

// Loop is the execution loop for a card, keyed 1:1 by card id. A loop
// entity exists only while its card is in an active work stage; its
// absence means "no active loop", not an error.
type Loop struct {
	CardID              string     `json:"card_id"`
	Status              LoopStatus `json:"status"`
	Iteration           int        `json:"iteration"`
	CostUSD             float64    `json:"cost_usd"`
	Tokens              int64      `json:"tokens"`
	ElapsedSeconds      int64      `json:"elapsed_seconds"`
	CheckpointIteration int        `json:"checkpoint_iteration"`
	ConsecutiveErrors   int        `json:"consecutive_errors"`
	Config              LoopConfig `json:"config"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// EntityID returns the owning card's id; loops are keyed by card.
func (l Loop) EntityID() string { return l.CardID }

// ModifiedAt returns the loop's last-update timestamp.
func (l Loop) ModifiedAt() time.Time { return l.UpdatedAt }

// Active reports whether the loop is still consuming budget.
func (l Loop) Active() bool {
	return l.Status == LoopRunning || l.Status == LoopPaused
}

// Exhausted reports whether any configured limit has been reached.
func (l Loop) Exhausted() bool {
	if l.Config.MaxIterations > 0 && l.Iteration >= l.Config.MaxIterations {
		return true
	}
	if l.Config.MaxCostUSD > 0 && l.CostUSD >= l.Config.MaxCostUSD {
		return true
	}
	if l.Config.MaxConsecutiveErrors > 0 && l.ConsecutiveErrors >= l.Config.MaxConsecutiveErrors {
		return true
	}
	return false
}

// Worker is an agent that executes cards.
type Worker struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	Status       WorkerStatus `json:"status"`
	Capabilities []string     `json:"capabilities,omitempty"`
	CardID       string       `json:"card_id,omitempty"`
	Completed    int          `json:"completed"`
	Failed       int          `json:"failed"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// EntityID returns the worker's id.
func (w Worker) EntityID() string { return w.ID }

// ModifiedAt returns the worker's last-update timestamp.
func (w Worker) ModifiedAt() time.Time { return w.UpdatedAt }

// IsAvailable reports whether the worker can accept a new card.
func (w Worker) IsAvailable() bool {
	return w.Status == WorkerIdle && w.CardID == ""
}

// CanHandle reports whether the worker advertises the capability.
func (w Worker) CanHandle(capability string) bool {
	return slices.ContainsFunc(w.Capabilities, func(c string) bool {
		return strings.EqualFold(c, capability)
	})
}

// Project groups cards and workers.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID returns the project's id.
func (p Project) EntityID() string { return p.ID }

// ModifiedAt returns the project's last-update timestamp.
func (p Project) ModifiedAt() time.Time { return p.UpdatedAt }

// OutputLine is one line of a worker's append-only output stream.
// Line numbers are per worker, monotonically increasing from 1.
type OutputLine struct {
	WorkerID   string `json:"worker_id,omitempty"`
	LineNumber int64  `json:"line_number"`
	Line       string `json:"line"`
}

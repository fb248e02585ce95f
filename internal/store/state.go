package store

import (
	"sort"
	"sync"
	"time"

	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/workflow"
)

// State aggregates the per-family stores plus connection bookkeeping.
// It is the single read model the dashboard binds to. Derived views
// (per-stage counts, active loops) are computed on read; the entity set
// is hundreds of items at most, so recomputation is cheaper than
// maintaining a second source of truth for aggregates.
type State struct {
	Cards    *Store[domain.Card]
	Loops    *Store[domain.Loop]
	Workers  *Store[domain.Worker]
	Projects *Store[domain.Project]

	mu          sync.RWMutex
	connected   bool
	lastEvent   string
	lastEventAt time.Time
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		Cards:    New[domain.Card](),
		Loops:    New[domain.Loop](),
		Workers:  New[domain.Worker](),
		Projects: New[domain.Project](),
	}
}

// SetConnected flips the observable connection flag. Purely
// informational for status indicators; store correctness never depends
// on it.
func (s *State) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// Connected reports the current connection flag.
func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// RecordEvent notes the most recently routed event for the status bar.
func (s *State) RecordEvent(eventType string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEvent = eventType
	s.lastEventAt = at
}

// LastEvent returns the most recently routed event type and its
// timestamp.
func (s *State) LastEvent() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEvent, s.lastEventAt
}

// CardsByState groups cards into lifecycle columns. Cards within a
// column are ordered by priority (descending), then most recently
// updated first.
func (s *State) CardsByState() map[workflow.CardState][]domain.Card {
	out := make(map[workflow.CardState][]domain.Card)
	for _, card := range s.Cards.All() {
		state := workflow.CardState(card.State)
		out[state] = append(out[state], card)
	}
	for state := range out {
		column := out[state]
		sort.Slice(column, func(i, j int) bool {
			if column[i].Priority != column[j].Priority {
				return column[i].Priority > column[j].Priority
			}
			return column[i].UpdatedAt.After(column[j].UpdatedAt)
		})
		out[state] = column
	}
	return out
}

// StageCounts returns the number of cards per lifecycle stage,
// including zero entries for empty stages so columns render stably.
func (s *State) StageCounts() map[workflow.CardState]int {
	counts := make(map[workflow.CardState]int, len(workflow.AllStates))
	for _, state := range workflow.AllStates {
		counts[state] = 0
	}
	for _, card := range s.Cards.All() {
		counts[workflow.CardState(card.State)]++
	}
	return counts
}

// ActiveLoops returns loops that are still running or paused.
func (s *State) ActiveLoops() []domain.Loop {
	var active []domain.Loop
	for _, loop := range s.Loops.All() {
		if loop.Active() {
			active = append(active, loop)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CardID < active[j].CardID
	})
	return active
}

// LoopFor returns the execution loop owned by the card, if any. A
// missing loop means no active loop, not an error.
func (s *State) LoopFor(cardID string) (domain.Loop, bool) {
	return s.Loops.Get(cardID)
}

// TotalCost sums accumulated cost across all cards.
func (s *State) TotalCost() float64 {
	var total float64
	for _, card := range s.Cards.All() {
		total += card.CostUSD
	}
	return total
}

// WorkersSorted returns workers ordered busy first, then idle, then
// offline, with stable name ordering inside each group.
func (s *State) WorkersSorted() []domain.Worker {
	workers := s.Workers.All()
	rank := map[domain.WorkerStatus]int{
		domain.WorkerBusy:    0,
		domain.WorkerIdle:    1,
		domain.WorkerOffline: 2,
	}
	sort.Slice(workers, func(i, j int) bool {
		if rank[workers[i].Status] != rank[workers[j].Status] {
			return rank[workers[i].Status] < rank[workers[j].Status]
		}
		return workers[i].Name < workers[j].Name
	})
	return workers
}

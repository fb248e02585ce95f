package dashboard

import (
	"github.com/swarmdeck/swarmdeck/internal/config"
	"github.com/swarmdeck/swarmdeck/internal/domain"
)

// stateChangedMsg signals that the entity stores mutated. Coalesced at
// the sender; the model re-reads the stores on receipt rather than
// carrying deltas.
type stateChangedMsg struct{}

// outputChangedMsg signals that the open output panel has new lines.
type outputChangedMsg struct{}

// transitionDoneMsg carries the confirmed card after a server-accepted
// move.
type transitionDoneMsg struct {
	card domain.Card
}

// transitionFailedMsg carries a user-facing rejection.
type transitionFailedMsg struct {
	err error
}

// backlogLoadedMsg signals the cold output backlog finished loading.
type backlogLoadedMsg struct {
	workerID string
	err      error
}

// configReloadedMsg carries a freshly validated configuration after an
// on-disk edit. Only display options take effect live; connection
// settings stay fixed for the session.
type configReloadedMsg struct {
	cfg *config.Config
}

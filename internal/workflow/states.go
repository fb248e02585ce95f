// Package workflow defines the card lifecycle state machine: the closed
// vocabulary of lifecycle stages and the fixed table of legal
// transitions between them. The table is advisory on the client side;
// the orchestration server remains authoritative and reports its
// decision back as an updated card snapshot.
package workflow

// CardState is one of the fixed lifecycle stages a card moves through.
type CardState string

const (
	StateDraft        CardState = "draft"
	StatePlanning     CardState = "planning"
	StateCoding       CardState = "coding"
	StateCodeReview   CardState = "code_review"
	StateTesting      CardState = "testing"
	StateErrorFixing  CardState = "error_fixing"
	StateBuildQueue   CardState = "build_queue"
	StateBuilding     CardState = "building"
	StateBuildSuccess CardState = "build_success"
	StateBuildFailed  CardState = "build_failed"
	StateDeployQueue  CardState = "deploy_queue"
	StateDeploying    CardState = "deploying"
	StateVerifying    CardState = "verifying"
	StateCompleted    CardState = "completed"
	StateFailed       CardState = "failed"
	StateArchived     CardState = "archived"
)

// AllStates lists every lifecycle stage in typical forward-flow order.
// The dashboard renders kanban columns in this order.
var AllStates = []CardState{
	StateDraft,
	StatePlanning,
	StateCoding,
	StateCodeReview,
	StateTesting,
	StateErrorFixing,
	StateBuildQueue,
	StateBuilding,
	StateBuildSuccess,
	StateBuildFailed,
	StateDeployQueue,
	StateDeploying,
	StateVerifying,
	StateCompleted,
	StateFailed,
	StateArchived,
}

// String returns the state's wire representation.
func (s CardState) String() string { return string(s) }

// ValidState reports whether s is a member of the lifecycle vocabulary.
func ValidState(s CardState) bool {
	_, ok := stateOrder[s]
	return ok
}

// IsTerminal reports whether no outbound transitions except archival
// remain for the state.
func IsTerminal(s CardState) bool {
	return s == StateCompleted || s == StateFailed || s == StateArchived
}

// IsActiveWork reports whether a card in this state may own a running
// execution loop. Absence of a loop for a card in one of these states
// still means "no active loop", never an error.
func IsActiveWork(s CardState) bool {
	switch s {
	case StateCoding, StateErrorFixing, StateTesting:
		return true
	}
	return false
}

// stateOrder assigns each state its position in AllStates, used for
// column ordering and validity checks.
var stateOrder = func() map[CardState]int {
	m := make(map[CardState]int, len(AllStates))
	for i, s := range AllStates {
		m[s] = i
	}
	return m
}()

// Order returns the state's position in the forward flow, or -1 for
// states outside the vocabulary.
func Order(s CardState) int {
	if i, ok := stateOrder[s]; ok {
		return i
	}
	return -1
}

package workflow

import "sort"

// Trigger is the named action that moves a card between two states.
// The server accepts a trigger, not a destination state.
type Trigger string

const (
	TriggerStartPlanning      Trigger = "StartPlanning"
	TriggerPlanApproved       Trigger = "PlanApproved"
	TriggerRequestReview      Trigger = "RequestReview"
	TriggerReviewApproved     Trigger = "ReviewApproved"
	TriggerChangesRequested   Trigger = "ChangesRequested"
	TriggerTestsPassed        Trigger = "TestsPassed"
	TriggerTestsFailed        Trigger = "TestsFailed"
	TriggerFixReady           Trigger = "FixReady"
	TriggerBuildStarted       Trigger = "BuildStarted"
	TriggerBuildPassed        Trigger = "BuildPassed"
	TriggerBuildBroke         Trigger = "BuildBroke"
	TriggerDiagnoseBuild      Trigger = "DiagnoseBuild"
	TriggerQueueDeploy        Trigger = "QueueDeploy"
	TriggerDeployStarted      Trigger = "DeployStarted"
	TriggerDeployFinished     Trigger = "DeployFinished"
	TriggerVerificationPassed Trigger = "VerificationPassed"
	TriggerVerificationFailed Trigger = "VerificationFailed"
	TriggerAbort              Trigger = "Abort"
	TriggerArchive            Trigger = "Archive"
)

// pair identifies one legal transition. The table is keyed on the
// (from, to) pair, not the destination alone: testing and verifying
// both reach error_fixing via different triggers without ambiguity.
type pair struct {
	from CardState
	to   CardState
}

// transitions is the fixed table of legal (from, to) pairs, each mapped
// to exactly one trigger. States have no self-transition entries.
var transitions = map[pair]Trigger{
	{StateDraft, StatePlanning}:           TriggerStartPlanning,
	{StatePlanning, StateCoding}:          TriggerPlanApproved,
	{StateCoding, StateCodeReview}:        TriggerRequestReview,
	{StateCodeReview, StateTesting}:       TriggerReviewApproved,
	{StateCodeReview, StateCoding}:        TriggerChangesRequested,
	{StateTesting, StateBuildQueue}:       TriggerTestsPassed,
	{StateTesting, StateErrorFixing}:      TriggerTestsFailed,
	{StateErrorFixing, StateCoding}:       TriggerFixReady,
	{StateBuildQueue, StateBuilding}:      TriggerBuildStarted,
	{StateBuilding, StateBuildSuccess}:    TriggerBuildPassed,
	{StateBuilding, StateBuildFailed}:     TriggerBuildBroke,
	{StateBuildFailed, StateErrorFixing}:  TriggerDiagnoseBuild,
	{StateBuildSuccess, StateDeployQueue}: TriggerQueueDeploy,
	{StateDeployQueue, StateDeploying}:    TriggerDeployStarted,
	{StateDeploying, StateVerifying}:      TriggerDeployFinished,
	{StateVerifying, StateCompleted}:      TriggerVerificationPassed,
	{StateVerifying, StateErrorFixing}:    TriggerVerificationFailed,
	{StatePlanning, StateFailed}:          TriggerAbort,
	{StateCoding, StateFailed}:            TriggerAbort,
	{StateCodeReview, StateFailed}:        TriggerAbort,
	{StateTesting, StateFailed}:           TriggerAbort,
	{StateErrorFixing, StateFailed}:       TriggerAbort,
	{StateBuildQueue, StateFailed}:        TriggerAbort,
	{StateBuilding, StateFailed}:          TriggerAbort,
	{StateBuildFailed, StateFailed}:       TriggerAbort,
	{StateDeployQueue, StateFailed}:       TriggerAbort,
	{StateDeploying, StateFailed}:         TriggerAbort,
	{StateVerifying, StateFailed}:         TriggerAbort,
	{StateDraft, StateArchived}:           TriggerArchive,
	{StateCompleted, StateArchived}:       TriggerArchive,
	{StateFailed, StateArchived}:          TriggerArchive,
}

// TriggerFor returns the trigger mapped to the (from, to) pair, or
// false when the pair is absent from the table. Callers (drag-and-drop
// surfaces) must refuse the move locally on false; this is an
// optimistic pre-check only.
func TriggerFor(from, to CardState) (Trigger, bool) {
	t, ok := transitions[pair{from, to}]
	return t, ok
}

// CanTransition reports whether a trigger exists for the (from, to)
// pair.
func CanTransition(from, to CardState) bool {
	_, ok := transitions[pair{from, to}]
	return ok
}

// TargetsFrom returns the states reachable from the given state, in
// forward-flow order. Used to render legal move targets in the UI.
func TargetsFrom(from CardState) []CardState {
	var targets []CardState
	for p := range transitions {
		if p.from == from {
			targets = append(targets, p.to)
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		return Order(targets[i]) < Order(targets[j])
	})
	return targets
}

// TransitionCount returns the number of legal pairs in the table.
func TransitionCount() int {
	return len(transitions)
}

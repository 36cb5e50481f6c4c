package ops

import (
	"fmt"

	"github.com/hpungsan/intake/internal/errors"
)

// Workflow names a participant workflow.
type Workflow string

const (
	WorkflowCreate Workflow = "create"
	WorkflowDelete Workflow = "delete"
)

// State is a workflow state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateDeleting   State = "deleting"
	StateSucceeded  State = "succeeded"
	StateForbidden  State = "forbidden"
	StateFailed     State = "failed"
)

// Terminal reports whether no further events are accepted.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateForbidden || s == StateFailed
}

// Event drives a transition.
type Event string

const (
	EventStart     Event = "start"
	EventSucceeded Event = "succeeded"
	EventForbidden Event = "forbidden"
	EventFailed    Event = "failed"
)

// Effect is a side effect requested by a transition. The runner executes it.
type Effect string

const (
	EffectSubmitCreate         Effect = "submit_create"
	EffectSubmitDelete         Effect = "submit_delete"
	EffectCommit               Effect = "commit"
	EffectRemove               Effect = "remove"
	EffectEmit                 Effect = "emit"
	EffectAlert                Effect = "alert"
	EffectRefreshRelationships Effect = "refresh_relationships"
	EffectRefreshHistory       Effect = "refresh_history"
	EffectRefreshAllegations   Effect = "refresh_allegations"
)

// Transition is the result of one Step.
type Transition struct {
	From State
	To   State

	// Effects run in order; the first failure aborts the rest.
	Effects []Effect

	// FollowUps run after Effects. A failed follow-up never changes state.
	FollowUps []Effect

	// Concurrent follow-ups are issued together and awaited as a group.
	Concurrent bool
}

// Step is the pure transition function for both workflows.
//
//	create: idle -start-> submitting -succeeded|forbidden|failed-> terminal
//	delete: idle -start-> deleting   -succeeded|failed-> terminal
//
// A refused delete is a plain failure; only creation has a forbidden state.
func Step(w Workflow, from State, ev Event) (Transition, error) {
	t := Transition{From: from}

	switch {
	case w == WorkflowCreate && from == StateIdle && ev == EventStart:
		t.To = StateSubmitting
		t.Effects = []Effect{EffectSubmitCreate}

	case w == WorkflowCreate && from == StateSubmitting && ev == EventSucceeded:
		t.To = StateSucceeded
		t.Effects = []Effect{EffectCommit, EffectEmit}
		t.FollowUps = []Effect{EffectRefreshRelationships, EffectRefreshHistory}
		t.Concurrent = true

	case w == WorkflowCreate && from == StateSubmitting && ev == EventForbidden:
		t.To = StateForbidden
		t.Effects = []Effect{EffectAlert, EffectEmit}

	case w == WorkflowCreate && from == StateSubmitting && ev == EventFailed:
		t.To = StateFailed
		t.Effects = []Effect{EffectEmit}

	case w == WorkflowDelete && from == StateIdle && ev == EventStart:
		t.To = StateDeleting
		t.Effects = []Effect{EffectSubmitDelete}

	case w == WorkflowDelete && from == StateDeleting && ev == EventSucceeded:
		t.To = StateSucceeded
		t.Effects = []Effect{EffectRemove, EffectEmit}
		t.FollowUps = []Effect{EffectRefreshAllegations, EffectRefreshRelationships, EffectRefreshHistory}

	case w == WorkflowDelete && from == StateDeleting && (ev == EventFailed || ev == EventForbidden):
		t.To = StateFailed
		t.Effects = []Effect{EffectEmit}

	default:
		return t, errors.NewInternal(fmt.Errorf("%s workflow: no transition from %s on %s", w, from, ev))
	}

	return t, nil
}

// resultEvent classifies the outcome of a submit effect.
func resultEvent(err error) Event {
	switch {
	case err == nil:
		return EventSucceeded
	case errors.Is(err, errors.ErrForbidden):
		return EventForbidden
	default:
		return EventFailed
	}
}

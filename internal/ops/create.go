package ops

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/person"
)

// CreateInput contains parameters for the CreatePerson workflow.
type CreateInput struct {
	CaseID string `json:"case_id" validate:"required"`

	// Scope routes the history refresh: "screenings" (default) or "snapshots"
	Scope string `json:"scope,omitempty" validate:"omitempty,oneof=screenings snapshots"`

	// LegacyDescriptor is nil for a brand-new person with no legacy record
	LegacyDescriptor *person.LegacyDescriptor `json:"legacy_descriptor,omitempty"`

	Sealed    bool     `json:"sealed,omitempty"`
	Sensitive bool     `json:"sensitive,omitempty"`
	Roles     []string `json:"roles,omitempty"`

	person.Names
}

// CreateOutput contains the result of a successful CreatePerson.
type CreateOutput struct {
	AttemptID   string             `json:"attempt_id"`
	State       State              `json:"state"`
	Participant person.Participant `json:"participant"`

	// FollowUps lists the relationship and history refreshes with their errors
	FollowUps []FollowUpResult `json:"follow_ups"`

	// History is the refreshed involvement history, when that refresh succeeded
	History json.RawMessage `json:"history_of_involvements,omitempty"`
}

// CreatePerson submits a new participant to the participant service.
//
// On success the returned participant is marked provisional, committed to the
// case store, and the success outcome is emitted. Only then are the
// relationship and involvement-history refreshes issued, concurrently; their
// failures are reported on the output and never undo the creation.
//
// When the service accepts the participant but the store cannot commit it,
// the attempt ends failed: the failed outcome carries the new participant id
// and an INTERNAL error is returned.
//
// A refusal (FORBIDDEN) delivers the blocking notice through the notifier and
// returns the error. Any other failure returns REQUEST_FAILED carrying the
// service's error payload. Neither touches the store or issues follow-ups.
func CreatePerson(ctx context.Context, deps Deps, input CreateInput) (*CreateOutput, error) {
	input.CaseID = strings.TrimSpace(input.CaseID)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	scope := deps.scope(input.Scope)

	a, err := newAttempt(WorkflowCreate, deps, input.CaseID)
	if err != nil {
		return nil, err
	}

	payload := person.Participant{
		CaseID:    input.CaseID,
		Roles:     input.Roles,
		Sealed:    input.Sealed,
		Sensitive: input.Sensitive,
		Names:     input.Names,
	}
	if input.LegacyDescriptor != nil && input.LegacyDescriptor.LegacyID != "" {
		d := *input.LegacyDescriptor
		payload.LegacyDescriptor = &d
	}

	var (
		created *person.Participant
		history json.RawMessage
	)

	a.handlers[EffectSubmitCreate] = func(ctx context.Context) error {
		p, err := deps.People.CreatePerson(ctx, payload)
		if err != nil {
			return err
		}
		if p == nil || p.ID == "" {
			return errors.NewRequestFailed(0, "participant service returned no participant id", nil)
		}
		created = p
		return nil
	}
	a.handlers[EffectCommit] = func(ctx context.Context) error {
		created.CaseID = input.CaseID
		created.Provisional = true
		return deps.Store.PutParticipant(ctx, *created)
	}
	a.handlers[EffectAlert] = func(ctx context.Context) error {
		deps.notifier().Alert(ctx, errors.ForbiddenNotice)
		return nil
	}
	a.handlers[EffectEmit] = func(ctx context.Context) error {
		o := Outcome{Workflow: WorkflowCreate, AttemptID: a.id, State: a.state, CaseID: input.CaseID, Error: a.cause}
		if created != nil {
			o.ParticipantID = created.ID
		}
		deps.notifier().Emit(ctx, o)
		return nil
	}
	a.handlers[EffectRefreshRelationships] = func(ctx context.Context) error {
		_, err := refreshRelationships(ctx, deps, input.CaseID)
		return err
	}
	a.handlers[EffectRefreshHistory] = func(ctx context.Context) error {
		raw, err := deps.Cases.FetchHistoryOfInvolvements(ctx, scope, input.CaseID)
		if err != nil {
			return err
		}
		history = raw
		return nil
	}

	t, cause, err := a.submit(ctx)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if created != nil {
			fields = append(fields, zap.String("participant_id", created.ID))
		}
		a.logger.Error("create commit failed", fields...)
		return nil, err
	}
	if cause != nil {
		a.logger.Info("create refused", zap.String("state", string(a.state)), zap.Error(cause))
		return nil, cause
	}

	out := &CreateOutput{
		AttemptID:   a.id,
		State:       a.state,
		Participant: *created,
	}
	out.FollowUps = a.followUps(ctx, t)
	out.History = history

	a.logger.Info("participant created",
		zap.String("participant_id", created.ID),
		zap.Int("failed_follow_ups", failedFollowUps(out.FollowUps)),
	)
	return out, nil
}

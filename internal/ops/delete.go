package ops

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// DeleteInput contains parameters for the DeletePerson workflow.
type DeleteInput struct {
	CaseID        string `json:"case_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
	Scope         string `json:"scope,omitempty" validate:"omitempty,oneof=screenings snapshots"`
}

// DeleteOutput contains the result of a successful DeletePerson.
type DeleteOutput struct {
	AttemptID     string           `json:"attempt_id"`
	State         State            `json:"state"`
	Deleted       bool             `json:"deleted"`
	ParticipantID string           `json:"participant_id"`
	FollowUps     []FollowUpResult `json:"follow_ups"`

	Allegations json.RawMessage `json:"allegations,omitempty"`
	History     json.RawMessage `json:"history_of_involvements,omitempty"`
}

// DeletePerson removes a participant through the participant service.
//
// On success the participant is removed from the store and the success
// outcome is emitted; then allegations, relationships and involvement history
// are refreshed one after another. A failed refresh is reported and the next
// one still runs. On failure the participant stays and the error is returned.
func DeletePerson(ctx context.Context, deps Deps, input DeleteInput) (*DeleteOutput, error) {
	input.CaseID = strings.TrimSpace(input.CaseID)
	input.ParticipantID = strings.TrimSpace(input.ParticipantID)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	scope := deps.scope(input.Scope)

	if _, err := deps.Store.Participant(ctx, input.CaseID, input.ParticipantID); err != nil {
		return nil, err
	}

	a, err := newAttempt(WorkflowDelete, deps, input.CaseID)
	if err != nil {
		return nil, err
	}

	out := &DeleteOutput{AttemptID: a.id, ParticipantID: input.ParticipantID}

	a.handlers[EffectSubmitDelete] = func(ctx context.Context) error {
		return deps.People.DeletePerson(ctx, input.CaseID, input.ParticipantID)
	}
	a.handlers[EffectRemove] = func(ctx context.Context) error {
		return deps.Store.RemoveParticipant(ctx, input.CaseID, input.ParticipantID)
	}
	a.handlers[EffectEmit] = func(ctx context.Context) error {
		deps.notifier().Emit(ctx, Outcome{
			Workflow:      WorkflowDelete,
			AttemptID:     a.id,
			State:         a.state,
			CaseID:        input.CaseID,
			ParticipantID: input.ParticipantID,
			Error:         a.cause,
		})
		return nil
	}
	a.handlers[EffectRefreshAllegations] = func(ctx context.Context) error {
		raw, err := deps.Cases.FetchAllegations(ctx, input.CaseID)
		if err != nil {
			return err
		}
		out.Allegations = raw
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
		out.History = raw
		return nil
	}

	t, cause, err := a.submit(ctx)
	if err != nil {
		a.logger.Error("delete removal failed", zap.Error(err))
		return nil, err
	}
	if cause != nil {
		a.logger.Info("delete failed", zap.Error(cause))
		return nil, cause
	}

	out.State = a.state
	out.Deleted = true
	out.FollowUps = a.followUps(ctx, t)

	a.logger.Info("participant deleted",
		zap.String("participant_id", input.ParticipantID),
		zap.Int("failed_follow_ups", failedFollowUps(out.FollowUps)),
	)
	return out, nil
}

package ops

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/intake/internal/casefile"
	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/person"
	"github.com/hpungsan/intake/internal/relationships"
)

// snapshotMu serializes the check-and-replace of relationship snapshots.
var snapshotMu sync.Mutex

// refreshRelationships fetches the relationship graph for every participant
// with a legacy id and replaces the case's snapshot with it. A fetch whose
// client ids no longer match the case's participants is dropped: a refresh
// started after the change owns the snapshot.
func refreshRelationships(ctx context.Context, deps Deps, caseID string) ([]string, error) {
	participants, err := deps.Store.Participants(ctx, caseID)
	if err != nil {
		return nil, err
	}
	clientIDs := person.ClientIDs(participants)

	people, err := deps.Relations.FetchRelationships(ctx, clientIDs)
	if err != nil {
		return clientIDs, err
	}

	snapshotMu.Lock()
	defer snapshotMu.Unlock()

	current, err := deps.Store.Participants(ctx, caseID)
	if err != nil {
		return clientIDs, err
	}
	if !sameIDs(clientIDs, person.ClientIDs(current)) {
		deps.logger().Debug("dropping stale relationship snapshot",
			zap.String("case_id", caseID),
			zap.Strings("client_ids", clientIDs),
		)
		return clientIDs, nil
	}
	if err := deps.Store.ReplaceRelationships(ctx, caseID, people); err != nil {
		return clientIDs, err
	}
	return clientIDs, nil
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// RefreshOutput contains the result of RefreshRelationships.
type RefreshOutput struct {
	CaseID    string                        `json:"case_id"`
	ClientIDs []string                      `json:"client_ids"`
	People    []relationships.DisplayPerson `json:"people"`
}

// RefreshRelationships replaces the case's relationship snapshot and returns
// the rebuilt view.
func RefreshRelationships(ctx context.Context, deps Deps, caseID string) (*RefreshOutput, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, errors.NewInvalidRequest("case_id is required")
	}

	clientIDs, err := refreshRelationships(ctx, deps, caseID)
	if err != nil {
		deps.logger().Warn("relationship refresh failed", zap.String("case_id", caseID), zap.Error(err))
		return nil, err
	}

	people, err := DisplayPeople(ctx, deps.Store, deps.Lookup, caseID)
	if err != nil {
		return nil, err
	}
	return &RefreshOutput{CaseID: caseID, ClientIDs: clientIDs, People: people}, nil
}

// SaveRelationshipInput contains parameters for SaveRelationship.
type SaveRelationshipInput struct {
	CaseID string                  `json:"case_id" validate:"required"`
	Edit   person.RelationshipEdit `json:"relationship"`
}

// SaveRelationship posts a relationship edit and refreshes the case's
// relationships so the view reflects it.
func SaveRelationship(ctx context.Context, deps Deps, input SaveRelationshipInput) (*RefreshOutput, error) {
	input.CaseID = strings.TrimSpace(input.CaseID)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if err := deps.Relations.SaveRelationship(ctx, input.Edit); err != nil {
		deps.logger().Info("relationship save failed",
			zap.String("case_id", input.CaseID),
			zap.String("client_id", input.Edit.ClientID),
			zap.Error(err),
		)
		return nil, err
	}
	return RefreshRelationships(ctx, deps, input.CaseID)
}

// ConfirmInput contains parameters for ConfirmPerson.
type ConfirmInput struct {
	CaseID        string `json:"case_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
}

// ConfirmOutput contains the result of ConfirmPerson.
type ConfirmOutput struct {
	Participant person.Participant `json:"participant"`

	// Changed is false when the participant was already confirmed
	Changed bool `json:"changed"`
}

// ConfirmPerson clears the provisional flag on a committed participant.
func ConfirmPerson(ctx context.Context, store casefile.Store, input ConfirmInput) (*ConfirmOutput, error) {
	input.CaseID = strings.TrimSpace(input.CaseID)
	input.ParticipantID = strings.TrimSpace(input.ParticipantID)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	p, err := store.Participant(ctx, input.CaseID, input.ParticipantID)
	if err != nil {
		return nil, err
	}
	if !p.Provisional {
		return &ConfirmOutput{Participant: *p}, nil
	}

	p.Provisional = false
	if err := store.PutParticipant(ctx, *p); err != nil {
		return nil, err
	}
	return &ConfirmOutput{Participant: *p, Changed: true}, nil
}

// DisplayPeople builds the relationship view from the case's current
// participants and relationship snapshot.
func DisplayPeople(ctx context.Context, store casefile.Store, lookup relationships.CodeLookup, caseID string) ([]relationships.DisplayPerson, error) {
	participants, err := store.Participants(ctx, caseID)
	if err != nil {
		return nil, err
	}
	people, err := store.Relationships(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return relationships.Build(participants, people, lookup), nil
}

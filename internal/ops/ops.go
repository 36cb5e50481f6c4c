// Package ops implements the participant workflows and the relationship
// operations over the case store.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hpungsan/intake/internal/casefile"
	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/logging"
	"github.com/hpungsan/intake/internal/metrics"
	"github.com/hpungsan/intake/internal/person"
	"github.com/hpungsan/intake/internal/relationships"
)

// History scopes.
const (
	ScopeScreenings = "screenings"
	ScopeSnapshots  = "snapshots"
)

// PersonService creates and deletes participants.
type PersonService interface {
	CreatePerson(ctx context.Context, p person.Participant) (*person.Participant, error)
	DeletePerson(ctx context.Context, caseID, personID string) error
}

// RelationshipService reads and edits the relationship graph.
type RelationshipService interface {
	FetchRelationships(ctx context.Context, clientIDs []string) ([]person.FocusPerson, error)
	SaveRelationship(ctx context.Context, edit person.RelationshipEdit) error
}

// CaseService reads case-level data refreshed after participant changes.
type CaseService interface {
	FetchHistoryOfInvolvements(ctx context.Context, scope, caseID string) (json.RawMessage, error)
	FetchAllegations(ctx context.Context, caseID string) (json.RawMessage, error)
}

// Deps are the collaborators shared by all operations.
type Deps struct {
	Store     casefile.Store
	People    PersonService
	Relations RelationshipService
	Cases     CaseService

	// Lookup labels relationship type codes; nil shows raw codes
	Lookup relationships.CodeLookup

	// HistoryScope is used when an input names no scope; empty means screenings
	HistoryScope string

	Notifier Notifier
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

func (d Deps) logger() *zap.Logger { return logging.OrNop(d.Logger) }

func (d Deps) notifier() Notifier {
	if d.Notifier == nil {
		return NopNotifier{}
	}
	return d.Notifier
}

func (d Deps) scope(s string) string {
	if s != "" {
		return s
	}
	if d.HistoryScope != "" {
		return d.HistoryScope
	}
	return ScopeScreenings
}

// FollowUpResult reports one refresh issued after a successful workflow.
type FollowUpResult struct {
	Effect Effect `json:"effect"`
	Error  string `json:"error,omitempty"`
}

// failedFollowUps counts follow-ups that returned an error.
func failedFollowUps(results []FollowUpResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct validation and maps failures to INVALID_REQUEST
// with one message per json field.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewInvalidRequest(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonFieldName(fe.Namespace())] = validationMessage(fe)
	}
	return errors.NewInvalidFields(fields)
}

// jsonFieldName turns "CreateInput.CaseID" into "case_id".
func jsonFieldName(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	var b strings.Builder
	for i, r := range ns {
		switch {
		case r == '.':
			b.WriteRune('.')
		case r >= 'A' && r <= 'Z':
			if i > 0 && ns[i-1] != '.' && !(ns[i-1] >= 'A' && ns[i-1] <= 'Z') {
				b.WriteRune('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

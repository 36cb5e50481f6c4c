package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/intake/internal/casefile"
	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/logging"
)

// ClearOutput contains the result of ClearCase.
type ClearOutput struct {
	CaseID string `json:"case_id"`

	// Participants is how many participants the case held before clearing
	Participants int `json:"participants"`
}

// ClearCase tears down a case view: its participants and relationship
// snapshot are dropped from the store. Clearing an unknown case is a no-op.
func ClearCase(ctx context.Context, store casefile.Store, logger *zap.Logger, caseID string) (*ClearOutput, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, errors.NewInvalidRequest("case_id is required")
	}

	participants, err := store.Participants(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := store.Clear(ctx, caseID); err != nil {
		return nil, err
	}

	logging.OrNop(logger).Info("case cleared", zap.String("case_id", caseID), zap.Int("participants", len(participants)))
	return &ClearOutput{CaseID: caseID, Participants: len(participants)}, nil
}

package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/intake/internal/logging"
)

// Outcome is emitted when a workflow reaches a terminal state.
type Outcome struct {
	Workflow      Workflow `json:"workflow"`
	AttemptID     string   `json:"attempt_id"`
	State         State    `json:"state"`
	CaseID        string   `json:"case_id"`
	ParticipantID string   `json:"participant_id,omitempty"`
	Error         error    `json:"-"`
}

// Notifier receives workflow outcomes and blocking notices.
// Alert is delivered synchronously before the workflow returns.
type Notifier interface {
	Alert(ctx context.Context, message string)
	Emit(ctx context.Context, o Outcome)
}

// NopNotifier drops everything.
type NopNotifier struct{}

func (NopNotifier) Alert(context.Context, string) {}
func (NopNotifier) Emit(context.Context, Outcome) {}

// LogNotifier writes outcomes and notices to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Alert(_ context.Context, message string) {
	logging.OrNop(n.Logger).Warn("alert", zap.String("message", message))
}

func (n LogNotifier) Emit(_ context.Context, o Outcome) {
	fields := []zap.Field{
		zap.String("workflow", string(o.Workflow)),
		zap.String("attempt_id", o.AttemptID),
		zap.String("state", string(o.State)),
		zap.String("case_id", o.CaseID),
	}
	if o.ParticipantID != "" {
		fields = append(fields, zap.String("participant_id", o.ParticipantID))
	}
	if o.Error != nil {
		fields = append(fields, zap.Error(o.Error))
	}
	logging.OrNop(n.Logger).Info("workflow outcome", fields...)
}

// Notifiers fans out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Alert(ctx context.Context, message string) {
	for _, n := range ns {
		n.Alert(ctx, message)
	}
}

func (ns Notifiers) Emit(ctx context.Context, o Outcome) {
	for _, n := range ns {
		n.Emit(ctx, o)
	}
}

package ops

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/ids"
)

type effectFunc func(ctx context.Context) error

// attempt is one run of a workflow: its own id, its own machine state, and
// the effect handlers bound to its inputs.
type attempt struct {
	workflow Workflow
	id       string
	state    State
	deps     Deps
	cause    error // the failed request's error, once known
	logger   *zap.Logger
	handlers map[Effect]effectFunc
}

func newAttempt(w Workflow, deps Deps, caseID string) (*attempt, error) {
	id, err := ids.New()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &attempt{
		workflow: w,
		id:       id,
		state:    StateIdle,
		deps:     deps,
		logger: deps.logger().With(
			zap.String("workflow", string(w)),
			zap.String("attempt_id", id),
			zap.String("case_id", caseID),
		),
		handlers: make(map[Effect]effectFunc),
	}, nil
}

// fire applies ev and runs the transition's ordered effects. It returns the
// transition so the caller can run follow-ups once it has what it needs.
func (a *attempt) fire(ctx context.Context, ev Event) (Transition, error) {
	t, err := Step(a.workflow, a.state, ev)
	if err != nil {
		return t, err
	}
	a.state = t.To
	a.logger.Debug("transition", zap.String("from", string(t.From)), zap.String("to", string(t.To)))

	for _, e := range t.Effects {
		if err := a.run(ctx, e); err != nil {
			if t.To.Terminal() {
				return t, a.abort(ctx, e, err)
			}
			return t, err
		}
	}

	if t.To.Terminal() {
		a.deps.Metrics.Outcome(string(a.workflow), string(t.To))
	}
	return t, nil
}

// abort ends an attempt whose terminal effect e failed after the remote
// request went through. The attempt becomes failed and that outcome is
// emitted and counted in place of the one the transition named.
func (a *attempt) abort(ctx context.Context, e Effect, err error) error {
	if _, ok := errors.As(err); !ok {
		err = errors.NewInternal(fmt.Errorf("%s: %w", e, err))
	}
	a.logger.Error("terminal effect failed",
		zap.String("effect", string(e)),
		zap.String("abandoned_state", string(a.state)),
		zap.Error(err),
	)
	a.state = StateFailed
	a.cause = err

	if e != EffectEmit {
		if emitErr := a.run(ctx, EffectEmit); emitErr != nil {
			a.logger.Warn("failed outcome not emitted", zap.Error(emitErr))
		}
	}
	a.deps.Metrics.Outcome(string(a.workflow), string(StateFailed))
	return err
}

// submit runs the request transition and then the result transition chosen
// by the request's outcome. The request error, if any, is returned as cause.
func (a *attempt) submit(ctx context.Context) (t Transition, cause error, err error) {
	_, cause = a.fire(ctx, EventStart)
	if cause != nil {
		if _, ok := errors.As(cause); !ok {
			cause = errors.NewInternal(cause)
		}
	}
	a.cause = cause
	t, err = a.fire(ctx, resultEvent(cause))
	return t, cause, err
}

func (a *attempt) run(ctx context.Context, e Effect) error {
	h, ok := a.handlers[e]
	if !ok {
		return errors.NewInternal(fmt.Errorf("%s workflow: no handler for effect %s", a.workflow, e))
	}
	return h(ctx)
}

// followUps runs t's follow-ups. Failures are logged and counted but never
// stop the remaining follow-ups. Concurrent follow-ups share no cancellation.
func (a *attempt) followUps(ctx context.Context, t Transition) []FollowUpResult {
	results := make([]FollowUpResult, len(t.FollowUps))

	one := func(i int, e Effect) {
		err := a.run(ctx, e)
		a.deps.Metrics.FollowUp(string(a.workflow), string(e), err)
		results[i] = FollowUpResult{Effect: e}
		if err != nil {
			a.logger.Warn("follow-up failed", zap.String("effect", string(e)), zap.Error(err))
			results[i].Error = err.Error()
		}
	}

	if !t.Concurrent {
		for i, e := range t.FollowUps {
			one(i, e)
		}
		return results
	}

	var g errgroup.Group
	for i, e := range t.FollowUps {
		g.Go(func() error {
			one(i, e)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

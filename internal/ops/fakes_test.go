package ops

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/intake/internal/casefile"
	"github.com/hpungsan/intake/internal/metrics"
	"github.com/hpungsan/intake/internal/person"
)

// recorder is a shared, ordered call log for fakes and notifiers.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *recorder) index(call string) int {
	return slices.Index(r.snapshot(), call)
}

// fakeAPI implements every service interface.
type fakeAPI struct {
	rec *recorder

	mu            sync.Mutex
	created       *person.Participant
	createErr     error
	lastPayload   person.Participant
	deleteErr     error
	people        []person.FocusPerson
	relErr        error
	lastClientIDs []string
	history       json.RawMessage
	histErr       error
	lastScope     string
	allegErr      error
	saveErr       error
	saved         []person.RelationshipEdit

	// onRelationships, when set, runs inside FetchRelationships
	onRelationships func(ctx context.Context) error
	// onHistory, when set, runs inside FetchHistoryOfInvolvements
	onHistory func(ctx context.Context)
}

func (f *fakeAPI) CreatePerson(_ context.Context, p person.Participant) (*person.Participant, error) {
	f.rec.add("create")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPayload = p
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.created == nil {
		return nil, nil
	}
	c := *f.created
	return &c, nil
}

func (f *fakeAPI) DeletePerson(_ context.Context, caseID, personID string) error {
	f.rec.add("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErr
}

func (f *fakeAPI) FetchRelationships(ctx context.Context, clientIDs []string) ([]person.FocusPerson, error) {
	f.rec.add("relationships")
	if f.onRelationships != nil {
		if err := f.onRelationships(ctx); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastClientIDs = slices.Clone(clientIDs)
	if f.relErr != nil {
		return nil, f.relErr
	}
	return f.people, nil
}

func (f *fakeAPI) SaveRelationship(_ context.Context, edit person.RelationshipEdit) error {
	f.rec.add("save")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, edit)
	return nil
}

func (f *fakeAPI) FetchHistoryOfInvolvements(ctx context.Context, scope, caseID string) (json.RawMessage, error) {
	f.rec.add("history")
	if f.onHistory != nil {
		f.onHistory(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastScope = scope
	if f.histErr != nil {
		return nil, f.histErr
	}
	if f.history == nil {
		return json.RawMessage(`{"cases":[]}`), nil
	}
	return f.history, nil
}

func (f *fakeAPI) FetchAllegations(_ context.Context, caseID string) (json.RawMessage, error) {
	f.rec.add("allegations")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allegErr != nil {
		return nil, f.allegErr
	}
	return json.RawMessage(`[]`), nil
}

// recordingNotifier logs alerts and outcomes into the shared recorder.
type recordingNotifier struct {
	rec *recorder

	mu       sync.Mutex
	alerts   []string
	outcomes []Outcome
}

func (n *recordingNotifier) Alert(_ context.Context, message string) {
	n.rec.add("alert")
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, message)
}

func (n *recordingNotifier) Emit(_ context.Context, o Outcome) {
	n.rec.add("emit:" + string(o.State))
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
}

// failingStore fails participant writes with the configured errors.
type failingStore struct {
	*casefile.Memory
	putErr    error
	removeErr error
}

func (s *failingStore) PutParticipant(ctx context.Context, p person.Participant) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Memory.PutParticipant(ctx, p)
}

func (s *failingStore) RemoveParticipant(ctx context.Context, caseID, id string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Memory.RemoveParticipant(ctx, caseID, id)
}

type harness struct {
	deps     Deps
	api      *fakeAPI
	notifier *recordingNotifier
	rec      *recorder
	store    *casefile.Memory
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rec := &recorder{}
	api := &fakeAPI{rec: rec}
	n := &recordingNotifier{rec: rec}
	store := casefile.NewMemory()
	m := metrics.New(prometheus.NewRegistry())

	return &harness{
		deps: Deps{
			Store:     store,
			People:    api,
			Relations: api,
			Cases:     api,
			Notifier:  n,
			Logger:    zaptest.NewLogger(t),
			Metrics:   m,
		},
		api:      api,
		notifier: n,
		rec:      rec,
		store:    store,
		metrics:  m,
	}
}

func legacy(id string) *person.LegacyDescriptor {
	return &person.LegacyDescriptor{LegacyID: id}
}

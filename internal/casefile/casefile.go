// Package casefile holds the case aggregate: the participants attached to a
// case and the latest relationship snapshot for them.
package casefile

import (
	"context"
	"slices"
	"sync"

	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/person"
)

// Store is the shared participant/relationship store. Participant writes are
// keyed by participant id; relationship snapshots are replaced wholesale.
type Store interface {
	Participants(ctx context.Context, caseID string) ([]person.Participant, error)
	Participant(ctx context.Context, caseID, id string) (*person.Participant, error)
	PutParticipant(ctx context.Context, p person.Participant) error
	RemoveParticipant(ctx context.Context, caseID, id string) error
	Relationships(ctx context.Context, caseID string) ([]person.FocusPerson, error)
	ReplaceRelationships(ctx context.Context, caseID string, people []person.FocusPerson) error
	Clear(ctx context.Context, caseID string) error
}

type caseFile struct {
	order        []string
	participants map[string]person.Participant
	people       []person.FocusPerson
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	cases map[string]*caseFile
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cases: make(map[string]*caseFile)}
}

func (m *Memory) file(caseID string) *caseFile {
	cf, ok := m.cases[caseID]
	if !ok {
		cf = &caseFile{participants: make(map[string]person.Participant)}
		m.cases[caseID] = cf
	}
	return cf
}

// Participants returns the case's participants in insertion order.
func (m *Memory) Participants(_ context.Context, caseID string) ([]person.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cf, ok := m.cases[caseID]
	if !ok {
		return []person.Participant{}, nil
	}
	out := make([]person.Participant, 0, len(cf.order))
	for _, id := range cf.order {
		out = append(out, cloneParticipant(cf.participants[id]))
	}
	return out, nil
}

// Participant returns one participant or NOT_FOUND.
func (m *Memory) Participant(_ context.Context, caseID, id string) (*person.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cf, ok := m.cases[caseID]; ok {
		if p, ok := cf.participants[id]; ok {
			c := cloneParticipant(p)
			return &c, nil
		}
	}
	return nil, errors.NewNotFound(id)
}

// PutParticipant adds p, or replaces the participant with the same id in place.
func (m *Memory) PutParticipant(_ context.Context, p person.Participant) error {
	if p.ID == "" {
		return errors.NewInvalidRequest("participant id is required")
	}
	if p.CaseID == "" {
		return errors.NewInvalidRequest("participant case id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cf := m.file(p.CaseID)
	if _, exists := cf.participants[p.ID]; !exists {
		cf.order = append(cf.order, p.ID)
	}
	cf.participants[p.ID] = cloneParticipant(p)
	return nil
}

// RemoveParticipant deletes a participant or returns NOT_FOUND.
func (m *Memory) RemoveParticipant(_ context.Context, caseID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cf, ok := m.cases[caseID]
	if !ok {
		return errors.NewNotFound(id)
	}
	if _, ok := cf.participants[id]; !ok {
		return errors.NewNotFound(id)
	}
	delete(cf.participants, id)
	cf.order = slices.DeleteFunc(cf.order, func(v string) bool { return v == id })
	return nil
}

// Relationships returns the case's current relationship snapshot.
func (m *Memory) Relationships(_ context.Context, caseID string) ([]person.FocusPerson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cf, ok := m.cases[caseID]
	if !ok {
		return []person.FocusPerson{}, nil
	}
	return clonePeople(cf.people), nil
}

// ReplaceRelationships swaps in a new relationship snapshot.
func (m *Memory) ReplaceRelationships(_ context.Context, caseID string, people []person.FocusPerson) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.file(caseID).people = clonePeople(people)
	return nil
}

// Clear drops everything held for the case.
func (m *Memory) Clear(_ context.Context, caseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cases, caseID)
	return nil
}

func cloneParticipant(p person.Participant) person.Participant {
	if p.LegacyDescriptor != nil {
		d := *p.LegacyDescriptor
		p.LegacyDescriptor = &d
	}
	p.Roles = slices.Clone(p.Roles)
	p.Demographics = slices.Clone(p.Demographics)
	return p
}

func clonePeople(people []person.FocusPerson) []person.FocusPerson {
	out := make([]person.FocusPerson, len(people))
	for i, fp := range people {
		if fp.LegacyDescriptor != nil {
			d := *fp.LegacyDescriptor
			fp.LegacyDescriptor = &d
		}
		rels := make([]person.Relationship, len(fp.Relationships))
		for j, r := range fp.Relationships {
			if r.LegacyDescriptor != nil {
				d := *r.LegacyDescriptor
				r.LegacyDescriptor = &d
			}
			rels[j] = r
		}
		fp.Relationships = rels
		out[i] = fp
	}
	return out
}

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/person"
)

// Store persists the case aggregate in SQLite so successive CLI invocations
// share participants and the latest relationship snapshot.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Participants returns the case's participants in insertion order.
func (s *Store) Participants(ctx context.Context, caseID string) ([]person.Participant, error) {
	query := `
		SELECT data_json, provisional
		FROM participants
		WHERE case_id = ?
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []person.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// Participant returns one participant or NOT_FOUND.
func (s *Store) Participant(ctx context.Context, caseID, id string) (*person.Participant, error) {
	query := `
		SELECT data_json, provisional
		FROM participants
		WHERE case_id = ? AND id = ?
	`
	p, err := scanParticipant(s.db.QueryRowContext(ctx, query, caseID, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// PutParticipant inserts p, or replaces the stored participant with the same
// id while keeping its position.
func (s *Store) PutParticipant(ctx context.Context, p person.Participant) error {
	if p.ID == "" {
		return errors.NewInvalidRequest("participant id is required")
	}
	if p.CaseID == "" {
		return errors.NewInvalidRequest("participant case id is required")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return errors.NewInternal(err)
	}
	legacyID := toNullString(p.LegacyIDValue())
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE participants
		SET legacy_id = ?, provisional = ?, data_json = ?, updated_at = ?
		WHERE case_id = ? AND id = ?
	`, legacyID, p.Provisional, string(data), now, p.CaseID, p.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}

	if rowsAffected == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO participants (
				case_id, id, position, legacy_id, provisional, data_json, created_at, updated_at
			) VALUES (
				?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM participants WHERE case_id = ?),
				?, ?, ?, ?, ?
			)
		`, p.CaseID, p.ID, p.CaseID, legacyID, p.Provisional, string(data), now, now)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RemoveParticipant deletes a participant or returns NOT_FOUND.
func (s *Store) RemoveParticipant(ctx context.Context, caseID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM participants WHERE case_id = ? AND id = ?`, caseID, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// Relationships returns the case's latest relationship snapshot.
func (s *Store) Relationships(ctx context.Context, caseID string) ([]person.FocusPerson, error) {
	var peopleJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT people_json FROM relationship_snapshots WHERE case_id = ?`, caseID,
	).Scan(&peopleJSON)
	if err == sql.ErrNoRows {
		return []person.FocusPerson{}, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	people := []person.FocusPerson{}
	if err := json.Unmarshal([]byte(peopleJSON), &people); err != nil {
		return nil, errors.NewInternal(err)
	}
	return people, nil
}

// ReplaceRelationships stores a new snapshot in place of the previous one.
func (s *Store) ReplaceRelationships(ctx context.Context, caseID string, people []person.FocusPerson) error {
	if people == nil {
		people = []person.FocusPerson{}
	}
	data, err := json.Marshal(people)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationship_snapshots (case_id, people_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET people_json = excluded.people_json, updated_at = excluded.updated_at
	`, caseID, string(data), time.Now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Clear drops everything held for the case.
func (s *Store) Clear(ctx context.Context, caseID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE case_id = ?`, caseID); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM relationship_snapshots WHERE case_id = ?`, caseID); err != nil {
		return errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanParticipant decodes one participants row. The provisional column is
// authoritative over the flag inside data_json.
func scanParticipant(row rowScanner) (*person.Participant, error) {
	var (
		data        string
		provisional bool
	)
	if err := row.Scan(&data, &provisional); err != nil {
		return nil, err
	}

	var p person.Participant
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}
	p.Provisional = provisional
	return &p, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

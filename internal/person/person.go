package person

import "encoding/json"

// LegacyDescriptor links a person to a record in the legacy case system.
type LegacyDescriptor struct {
	// LegacyID is the external system id; empty means the person was never persisted there
	LegacyID string `json:"legacy_id,omitempty"`

	// LegacySourceTable names the legacy table the record came from
	LegacySourceTable string `json:"legacy_table_name,omitempty"`
}

// Names holds the name parts shared by participants, focus people, and search hits.
type Names struct {
	FirstName  string `json:"first_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	NameSuffix string `json:"name_suffix,omitempty"`
}

// Participant is a person attached to a case.
type Participant struct {
	// ID is assigned by the participant service; empty while the create is pending
	ID string `json:"id,omitempty"`

	// CaseID is the owning screening or snapshot
	CaseID string `json:"screening_id"`

	// LegacyDescriptor is nil for people with no legacy record
	LegacyDescriptor *LegacyDescriptor `json:"legacy_descriptor,omitempty"`

	// Provisional is set on people created in this session and cleared once confirmed
	Provisional bool `json:"newly_created_person,omitempty"`

	Roles     []string `json:"roles,omitempty"`
	Sealed    bool     `json:"sealed"`
	Sensitive bool     `json:"sensitive"`

	Names

	// Demographics is carried through verbatim
	Demographics json.RawMessage `json:"demographics,omitempty"`
}

// LegacyIDValue returns the legacy id, or "" when there is none.
func (p Participant) LegacyIDValue() string {
	if p.LegacyDescriptor == nil {
		return ""
	}
	return p.LegacyDescriptor.LegacyID
}

// Relationship is one edge from a focus person to a related person, as
// reported by the relationship service.
type Relationship struct {
	RelatedPersonFirstName  string `json:"related_person_first_name,omitempty"`
	RelatedPersonMiddleName string `json:"related_person_middle_name,omitempty"`
	RelatedPersonLastName   string `json:"related_person_last_name,omitempty"`
	RelatedPersonNameSuffix string `json:"related_person_name_suffix,omitempty"`

	// IndexedPersonRelationship is the relationship type code from the focus person's side
	IndexedPersonRelationship string `json:"indexed_person_relationship,omitempty"`

	// RelatedPersonRelationship is the inverse relationship type code
	RelatedPersonRelationship string `json:"related_person_relationship,omitempty"`

	RelatedPersonID       string `json:"related_person_id,omitempty"`
	AbsentParentIndicator bool   `json:"absent_parent_indicator,omitempty"`
	SameHomeStatus        string `json:"same_home_status,omitempty"`

	LegacyDescriptor *LegacyDescriptor `json:"legacy_descriptor,omitempty"`
}

// RelatedNames returns the related person's name parts.
func (r Relationship) RelatedNames() Names {
	return Names{
		FirstName:  r.RelatedPersonFirstName,
		MiddleName: r.RelatedPersonMiddleName,
		LastName:   r.RelatedPersonLastName,
		NameSuffix: r.RelatedPersonNameSuffix,
	}
}

// FocusPerson is a person whose relationships were fetched, together with
// those relationships. Snapshots are replaced wholesale and never edited.
type FocusPerson struct {
	ID string `json:"id,omitempty"`
	Names
	LegacyDescriptor *LegacyDescriptor `json:"legacy_descriptor,omitempty"`
	Relationships    []Relationship    `json:"relationships,omitempty"`
}

// RelationshipEdit is a change to one relationship edge, posted to the
// relationship service.
type RelationshipEdit struct {
	ID                    string `json:"id,omitempty"`
	ClientID              string `json:"client_id" validate:"required"`
	RelativeID            string `json:"relative_id" validate:"required"`
	RelationshipType      string `json:"relationship_type" validate:"required"`
	AbsentParentIndicator bool   `json:"absent_parent_indicator"`
	SameHomeStatus        string `json:"same_home_status,omitempty" validate:"omitempty,oneof=Y N U"`
}

// Package relationships folds participants and relationship snapshots into
// the rows shown in a case's relationships view.
package relationships

import (
	"github.com/hpungsan/intake/internal/person"
)

// DisplayRelationship is one related person under a DisplayPerson.
type DisplayRelationship struct {
	Name             string                   `json:"name"`
	Type             string                   `json:"type"`
	SecondaryType    string                   `json:"secondary_relationship"`
	LegacyDescriptor *person.LegacyDescriptor `json:"legacy_descriptor,omitempty"`

	// PersonCardAlreadyShown is false only when the case has participants and
	// none of them is this related person
	PersonCardAlreadyShown bool `json:"person_card_exists"`
}

// DisplayPerson is one row of the relationships view.
type DisplayPerson struct {
	Name                 string                   `json:"name"`
	LegacyDescriptor     *person.LegacyDescriptor `json:"legacy_descriptor,omitempty"`
	Provisional          bool                     `json:"newly_created_person"`
	NoKnownRelationships bool                     `json:"no_known_relationships"`
	Relationships        []DisplayRelationship    `json:"relationships"`
}

// Build produces one DisplayPerson per focus person, in input order.
// It never fails: missing names or codes degrade to the rawest value
// available so one bad record cannot blank the view.
func Build(participants []person.Participant, people []person.FocusPerson, lookup CodeLookup) []DisplayPerson {
	out := make([]DisplayPerson, 0, len(people))
	for _, focus := range people {
		out = append(out, buildPerson(participants, focus, lookup))
	}
	return out
}

func buildPerson(participants []person.Participant, focus person.FocusPerson, lookup CodeLookup) DisplayPerson {
	dp := DisplayPerson{
		Name:             person.FormatName(focus.Names),
		LegacyDescriptor: focus.LegacyDescriptor,
		Provisional:      person.AnyProvisionalMatch(participants, focus.LegacyDescriptor),
		Relationships:    make([]DisplayRelationship, 0, len(focus.Relationships)),
	}
	if dp.Name == "" && focus.ID != "" {
		dp.Name = focus.ID
	}

	if len(focus.Relationships) == 0 {
		dp.NoKnownRelationships = true
		return dp
	}

	for _, rel := range focus.Relationships {
		dp.Relationships = append(dp.Relationships, buildRelationship(participants, rel, lookup))
	}
	return dp
}

func buildRelationship(participants []person.Participant, rel person.Relationship, lookup CodeLookup) DisplayRelationship {
	name := person.FormatName(rel.RelatedNames())
	if name == "" {
		name = rel.RelatedPersonID
	}
	return DisplayRelationship{
		Name:                   name,
		Type:                   displayValue(lookup, rel.IndexedPersonRelationship),
		SecondaryType:          displayValue(lookup, rel.RelatedPersonRelationship),
		LegacyDescriptor:       rel.LegacyDescriptor,
		PersonCardAlreadyShown: personCardAlreadyShown(participants, rel.LegacyDescriptor),
	}
}

// personCardAlreadyShown defaults to true and only reports false when there
// is a definite participant list with no match for a known descriptor.
func personCardAlreadyShown(participants []person.Participant, d *person.LegacyDescriptor) bool {
	if len(participants) == 0 || d == nil || d.LegacyID == "" {
		return true
	}
	return person.AnyMatch(participants, d)
}

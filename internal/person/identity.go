package person

// IdentitiesEqual reports whether two legacy descriptors denote the same
// real-world person. A descriptor without a legacy id matches nothing, not
// even itself: a person never persisted in the legacy system cannot be
// matched by identity.
func IdentitiesEqual(a, b *LegacyDescriptor) bool {
	if a == nil || b == nil {
		return false
	}
	if a.LegacyID == "" || b.LegacyID == "" {
		return false
	}
	return a.LegacyID == b.LegacyID
}

// AnyMatch reports whether some participant's descriptor matches d.
func AnyMatch(participants []Participant, d *LegacyDescriptor) bool {
	for _, p := range participants {
		if IdentitiesEqual(p.LegacyDescriptor, d) {
			return true
		}
	}
	return false
}

// AnyProvisionalMatch reports whether some provisional participant's
// descriptor matches d.
func AnyProvisionalMatch(participants []Participant, d *LegacyDescriptor) bool {
	for _, p := range participants {
		if p.Provisional && IdentitiesEqual(p.LegacyDescriptor, d) {
			return true
		}
	}
	return false
}

// ClientIDs returns the legacy ids of participants that have one, in
// collection order. These key the relationship service.
func ClientIDs(participants []Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		if id := p.LegacyIDValue(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

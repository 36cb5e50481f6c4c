package relationships

import "strings"

// CodeLookup resolves relationship type codes to display labels.
type CodeLookup interface {
	Lookup(code string) (label string, ok bool)
}

// MapLookup is a CodeLookup backed by a code → label map.
type MapLookup map[string]string

// Lookup implements CodeLookup.
func (m MapLookup) Lookup(code string) (string, bool) {
	label, ok := m[code]
	if !ok || strings.TrimSpace(label) == "" {
		return "", false
	}
	return label, true
}

// LookupFunc adapts a function to CodeLookup.
type LookupFunc func(code string) (string, bool)

// Lookup implements CodeLookup. A nil LookupFunc resolves nothing.
func (f LookupFunc) Lookup(code string) (string, bool) {
	if f == nil {
		return "", false
	}
	return f(code)
}

// displayValue returns the label for code, or the raw code when no label exists.
func displayValue(lookup CodeLookup, code string) string {
	if lookup == nil || code == "" {
		return code
	}
	if label, ok := lookup.Lookup(code); ok {
		return label
	}
	return code
}

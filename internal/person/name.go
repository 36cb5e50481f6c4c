package person

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims a name part and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// FormatName builds a display name from the available parts. Missing parts
// are skipped without leaving extra separators. A suffix always follows a
// comma.
//
//	{First: "Jake", Last: "Campbell", Suffix: "Jr"} → "Jake Campbell, Jr"
//	{Last: "Campbell"}                               → "Campbell"
func FormatName(n Names) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.FirstName, n.MiddleName, n.LastName} {
		if p = Normalize(p); p != "" {
			parts = append(parts, p)
		}
	}
	name := strings.Join(parts, " ")

	suffix := Normalize(n.NameSuffix)
	if suffix == "" {
		return name
	}
	if name == "" {
		return suffix
	}
	return name + ", " + suffix
}

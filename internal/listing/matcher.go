package listing

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Matches reports whether locality passes the filter. Containment is checked
// both ways, so "Rome" passes "rom" and "Roma" passes "Roma Capitale".
// An empty filter, or one made only of blank entries, accepts everything.
func Matches(locality string, targets []string) bool {
	loc := fold(locality)
	filtered := false
	for _, t := range targets {
		t = fold(t)
		if t == "" {
			continue
		}
		filtered = true
		if loc == "" {
			continue
		}
		if strings.Contains(loc, t) || strings.Contains(t, loc) {
			return true
		}
	}
	return !filtered
}

func fold(s string) string {
	return folder.String(strings.TrimSpace(s))
}

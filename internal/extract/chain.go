// Package extract turns unstructured listing text into typed field values.
//
// Every field is resolved by an ordered chain of rules. Rules are tried in
// declaration order and the first capture accepted by its rule's predicate
// wins; later rules are never consulted once one succeeds.
package extract

import (
	"regexp"
	"strings"
)

// Rule is a single pattern of a chain. Group selects the capture that is
// handed to Valid; group 0 is the whole match.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Group   int
	Valid   func(capture string) bool
}

// Match is the winning capture of a chain.
type Match struct {
	Rule  string
	Value string
}

type Chain []Rule

// First returns the capture of the earliest rule whose first match passes its
// predicate. Only the leftmost match of each rule is considered.
func (c Chain) First(text string) (Match, bool) {
	text = normalizeSpaces(text)
	for _, r := range c {
		m := r.Pattern.FindStringSubmatch(text)
		if len(m) <= r.Group {
			continue
		}
		capture := strings.TrimSpace(m[r.Group])
		if r.Valid != nil && !r.Valid(capture) {
			continue
		}
		return Match{Rule: r.Name, Value: capture}, true
	}
	return Match{}, false
}

var spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\r", "")

func normalizeSpaces(s string) string {
	return spaceReplacer.Replace(s)
}

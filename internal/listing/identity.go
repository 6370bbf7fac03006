package listing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

const identityHashLen = 24

type identityParts struct {
	source       string
	locality     string
	address      string
	auctionDate  string
	propertyType string
	link         string
	description  string
}

// Identity derives an id that is stable across cycles for the same listing.
// Price is left out so that a price change on a later cycle lands on the same id.
// Without a link of its own a block is told apart by its digit-free description.
func identity(p identityParts) string {
	parts := []string{
		fold(p.source),
		fold(p.locality),
		fold(Collapse(p.address)),
		fold(p.auctionDate),
		fold(p.propertyType),
		strings.TrimSpace(p.link),
	}
	if p.link == "" {
		parts = append(parts, fold(withoutDigits(p.description)))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return slug(p.source) + "-" + hex.EncodeToString(sum[:])[:identityHashLen]
}

// withoutDigits drops figures so that a changed price printed inside the
// description does not move the listing to a new id.
func withoutDigits(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, s)
	return Collapse(s)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "source"
	}
	return out
}

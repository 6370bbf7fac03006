package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// earlyPriceFloor rejects figures that are clearly not property prices
// (lot numbers, square metres). Admission applies its own, higher floor.
const earlyPriceFloor = 1000

const amount = `([0-9]{1,3}(?:\.[0-9]{3})+|[0-9]+)`

var priceChain = Chain{
	{Name: "currency-prefix", Pattern: regexp.MustCompile(`(?:€|EUR)\s*` + amount), Group: 1, Valid: validPrice},
	{Name: "currency-suffix", Pattern: regexp.MustCompile(amount + `(?:,[0-9]{1,2})?\s*(?:€|EUR)`), Group: 1, Valid: validPrice},
	{Name: "labelled", Pattern: regexp.MustCompile(`(?i)(?:prezzo base|prezzo|base d'asta|offerta minima|base bid|price)[\s:]+(?:€\s*)?` + amount), Group: 1, Valid: validPrice},
}

// bareAmount is only used on text that is already known to hold a price,
// such as a dedicated price element.
var bareAmount = Chain{
	{Name: "bare-amount", Pattern: regexp.MustCompile(amount), Group: 1, Valid: validPrice},
}

const (
	capitalized = `[A-ZÀÈÉÌÒÙ][a-zàèéìòù]+`
	placeName   = capitalized + `(?:[ \t]+` + capitalized + `)?`
)

var localityChain = Chain{
	{Name: "municipality-label", Pattern: regexp.MustCompile(`(?i)(?:comune|municipality|città)[\s:]+([a-zàèéìòù\s]+?)\s*[-,\n]`), Group: 1, Valid: validLocality},
	{Name: "preposition", Pattern: regexp.MustCompile(`\b(?:a|in|at)\s+(` + placeName + `)`), Group: 1, Valid: validLocality},
	{Name: "locality-label", Pattern: regexp.MustCompile(`(?i)(?:località|locality)[ \t:]+([a-zàèéìòù ]+)`), Group: 1, Valid: validLocality},
	{Name: "province-code", Pattern: regexp.MustCompile(`(` + capitalized + `(?:[ \t]+` + capitalized + `)*)[ \t]*\([A-Z]{2}\)`), Group: 1, Valid: validLocality},
}

var addressChain = Chain{
	{Name: "street", Pattern: regexp.MustCompile(`(?i)\b(?:via|viale|piazza|piazzale|corso|strada|vicolo|largo|località|loc\.)\s+[^,\n]+`)},
}

var auctionDateChain = Chain{
	{Name: "numeric", Pattern: regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`)},
	{Name: "month-name", Pattern: regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre|january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}\b`)},
}

// propertyTypes is scanned in order; the first key contained in the text wins.
var propertyTypes = []struct {
	key   string
	label string
}{
	{"appartamento", "Appartamento"},
	{"villa", "Villa"},
	{"garage", "Garage"},
	{"box", "Garage"},
	{"terreno", "Terreno"},
	{"locale", "Locale Commerciale"},
	{"negozio", "Negozio"},
	{"ufficio", "Ufficio"},
	{"magazzino", "Magazzino"},
	{"capannone", "Magazzino"},
	{"apartment", "Appartamento"},
	{"warehouse", "Magazzino"},
	{"land", "Terreno"},
	{"shop", "Negozio"},
	{"office", "Ufficio"},
}

// Price returns the first valid price in text, in whole currency units.
func Price(text string) (int64, bool) {
	m, ok := priceChain.First(text)
	if !ok {
		return 0, false
	}
	return parseAmount(m.Value)
}

// PriceFromElement parses the text of an element dedicated to the price.
// Currency-marked amounts are preferred; a bare number is accepted otherwise.
func PriceFromElement(text string) (int64, bool) {
	if p, ok := Price(text); ok {
		return p, true
	}
	m, ok := bareAmount.First(text)
	if !ok {
		return 0, false
	}
	return parseAmount(m.Value)
}

func Locality(text string) (string, bool) {
	m, ok := localityChain.First(text)
	return m.Value, ok
}

func Address(text string) (string, bool) {
	m, ok := addressChain.First(text)
	return m.Value, ok
}

// AuctionDate returns the date as written; calendar validity is not checked.
func AuctionDate(text string) (string, bool) {
	m, ok := auctionDateChain.First(text)
	return m.Value, ok
}

func PropertyType(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, t := range propertyTypes {
		if strings.Contains(lower, t.key) {
			return t.label, true
		}
	}
	return "", false
}

func parseAmount(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ".", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func validPrice(s string) bool {
	n, ok := parseAmount(s)
	return ok && n > earlyPriceFloor
}

func validLocality(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n > 2 && n < 50
}

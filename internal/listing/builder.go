// Package listing turns page blocks into admitted listings.
package listing

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ACS-web2026/aste-backend/internal/domain"
	"github.com/ACS-web2026/aste-backend/internal/extract"
)

const (
	DefaultContainer = `article, .card, [class*="auction"], [class*="property"]`
	MaxBlocks        = 100
)

type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WithClock replaces the clock used for lastUpdated.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// BuildAll builds a listing from every container block of doc, in page order.
// Blocks resolving to an id already seen on the page are skipped. Relative
// links resolve against doc.Url when set, so a redirected page keeps its links.
func (b *Builder) BuildAll(doc *goquery.Document, src domain.SourceConfig, filter []string) []domain.Listing {
	base := src.URL
	if doc.Url != nil && doc.Url.IsAbs() {
		base = doc.Url.String()
	}

	container := src.Selectors.Container
	if container == "" {
		container = DefaultContainer
	}

	var out []domain.Listing
	seen := make(map[string]struct{})
	doc.Find(container).EachWithBreak(func(i int, block *goquery.Selection) bool {
		if i >= MaxBlocks {
			return false
		}
		l, ok := b.build(block, src, base, filter)
		if !ok {
			return true
		}
		if _, dup := seen[l.ID]; dup {
			return true
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
		return true
	})
	return out
}

// Build resolves the fields of one block. It reports false when the block is
// not admitted: locality or price unresolved, price at or under the floor, or
// locality rejected by filter.
func (b *Builder) Build(block *goquery.Selection, src domain.SourceConfig, filter []string) (domain.Listing, bool) {
	return b.build(block, src, src.URL, filter)
}

func (b *Builder) build(block *goquery.Selection, src domain.SourceConfig, base string, filter []string) (domain.Listing, bool) {
	text := Text(block)

	locality, ok := b.locality(block, text, src.Selectors)
	if !ok {
		return domain.Listing{}, false
	}
	price, ok := b.price(block, text, src.Selectors)
	if !ok || price <= domain.MinAdmissionPrice {
		return domain.Listing{}, false
	}
	if !Matches(locality, filter) {
		return domain.Listing{}, false
	}

	address, hasAddress := extract.Address(text)
	auctionDate, hasDate := extract.AuctionDate(text)
	propertyType, hasType := b.propertyType(block, text, src.Selectors)
	href, own := b.link(block, src, base)
	description := Describe(text)

	id := identity(identityParts{
		source:       src.Name,
		locality:     locality,
		address:      address,
		auctionDate:  auctionDate,
		propertyType: propertyType,
		link:         ownLink(href, own),
		description:  description,
	})

	if !hasAddress {
		address = domain.FallbackAddress
	}
	if !hasDate {
		auctionDate = domain.FallbackAuctionDate
	}
	if !hasType {
		propertyType = domain.FallbackPropertyType
	}

	return domain.Listing{
		ID:           id,
		Locality:     locality,
		Address:      address,
		AuctionDate:  auctionDate,
		Price:        price,
		PropertyType: propertyType,
		Description:  description,
		Link:         href,
		Source:       src.Name,
		LastUpdated:  b.now().UTC(),
	}, true
}

func (b *Builder) locality(block *goquery.Selection, text string, sel domain.Selectors) (string, bool) {
	if sel.Locality != "" {
		if v := Collapse(block.Find(sel.Locality).First().Text()); v != "" {
			return v, true
		}
	}
	return extract.Locality(text)
}

func (b *Builder) price(block *goquery.Selection, text string, sel domain.Selectors) (int64, bool) {
	if sel.Price != "" {
		if el := block.Find(sel.Price).First(); el.Length() > 0 {
			if p, ok := extract.PriceFromElement(el.Text()); ok {
				return p, true
			}
		}
	}
	return extract.Price(text)
}

func (b *Builder) propertyType(block *goquery.Selection, text string, sel domain.Selectors) (string, bool) {
	if sel.PropertyType != "" {
		if v := Collapse(block.Find(sel.PropertyType).First().Text()); v != "" {
			if t, ok := extract.PropertyType(v); ok {
				return t, true
			}
			return v, true
		}
	}
	return extract.PropertyType(text)
}

// link returns the absolute link of the block and whether it came from the
// block itself rather than the source fallback.
func (b *Builder) link(block *goquery.Selection, src domain.SourceConfig, base string) (string, bool) {
	var href string
	switch {
	case src.Selectors.Link != "":
		href, _ = block.Find(src.Selectors.Link).First().Attr("href")
	case goquery.NodeName(block) == "a":
		href, _ = block.Attr("href")
	}
	if strings.TrimSpace(href) == "" {
		href, _ = block.Find("a[href]").First().Attr("href")
	}

	if abs, ok := Resolve(base, href); ok {
		return abs, true
	}
	return src.URL, false
}

// Resolve makes ref absolute against base. Fragment-only, javascript and
// empty references do not resolve.
func Resolve(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if r.IsAbs() {
		return r.String(), true
	}
	bu, err := url.Parse(base)
	if err != nil || !bu.IsAbs() {
		return "", false
	}
	return bu.ResolveReference(r).String(), true
}

func ownLink(href string, own bool) string {
	if !own {
		return ""
	}
	return href
}

// Package fetch retrieves source pages either over plain HTTP or through a
// headless browser.
package fetch

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/ACS-web2026/aste-backend/internal/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Request describes one page to fetch. Locality is only used by sources that
// need a search form filled in before results appear.
type Request struct {
	URL                 string
	Source              string
	Locality            string
	RequiresInteraction bool
	Interaction         domain.Interaction
}

// Document is a fetched page ready for querying. Its Url is the address the
// page was finally served from, after redirects.
type Document struct {
	*goquery.Document
}

func newDocument(body []byte, finalURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if u, err := url.Parse(finalURL); err == nil {
		doc.Url = u
	}
	return &Document{Document: doc}, nil
}

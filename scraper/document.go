package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a queryable page, either a live browser page or parsed static
// HTML. Lookups that match nothing return "" without an error.
type Document interface {
	// First returns the text (attr == "") or the attribute value of the
	// first element matching selector.
	First(selector, attr string) (string, error)
	// All returns the text or attribute value of every matching element.
	All(selector, attr string) ([]string, error)
	// VisibleText returns the page's body text.
	VisibleText() (string, error)
	// Title returns the document title.
	Title() (string, error)
}

// TrySelectors returns the first non-empty value found by trying selectors in
// order against the first matching element, then against every match.
// Selectors that fail or match nothing are skipped; no match yields "".
func TrySelectors(doc Document, selectors []string, attr string) string {
	for _, selector := range selectors {
		value, err := doc.First(selector, attr)
		if err != nil {
			continue
		}
		if value = cleanText(value); value != "" {
			return value
		}
	}

	for _, selector := range selectors {
		values, err := doc.All(selector, attr)
		if err != nil {
			continue
		}
		for _, value := range values {
			if value = cleanText(value); value != "" {
				return value
			}
		}
	}

	return ""
}

// cleanText trims and collapses whitespace runs.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLDocument is a Document over static HTML.
type HTMLDocument struct {
	doc *goquery.Document
}

// NewHTMLDocument parses html.
func NewHTMLDocument(html string) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &HTMLDocument{doc: doc}, nil
}

func (d *HTMLDocument) First(selector, attr string) (string, error) {
	return selectionValue(d.doc.Find(selector).First(), attr), nil
}

func (d *HTMLDocument) All(selector, attr string) ([]string, error) {
	var values []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		values = append(values, selectionValue(s, attr))
	})
	return values, nil
}

func (d *HTMLDocument) VisibleText() (string, error) {
	body := d.doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return body.Text(), nil
}

func (d *HTMLDocument) Title() (string, error) {
	return cleanText(d.doc.Find("title").First().Text()), nil
}

func selectionValue(s *goquery.Selection, attr string) string {
	if s.Length() == 0 {
		return ""
	}
	if attr == "" {
		return s.Text()
	}
	value, _ := s.Attr(attr)
	return value
}

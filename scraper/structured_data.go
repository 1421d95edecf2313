package scraper

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Extraction methods reported on StructuredProduct.
const (
	MethodJSONLD     = "json-ld"
	MethodOpenGraph  = "open-graph"
	MethodHTMLSearch = "pattern"
)

// StructuredProduct is the partial result of parsing machine-readable
// product data out of a page.
type StructuredProduct struct {
	Title     string
	Price     decimal.Decimal
	Currency  string
	Available bool
	ImageURL  string
	Method    string
}

var (
	defaultPriceParser = NewPriceParser()

	inlinePricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)["']price["']\s*:\s*["']?(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)["']currentPrice["']\s*:\s*["']?(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)data-price=["'](\d+(?:\.\d+)?)["']`),
		regexp.MustCompile(`(?i)class=["'][^"']*price[^"']*["'][^>]*>[\s\S]*?\$(\d+(?:\.\d+)?)`),
	}
	titleTagPattern = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)

	availableSchemaValues = []string{"InStock", "LimitedAvailability", "OnlineOnly", "InStoreOnly"}
)

// ExtractStructuredData looks for a positive product price in JSON-LD, then
// Open Graph meta tags, then inline price patterns. It returns nil when none
// of them yields one. It never touches the network.
func ExtractStructuredData(html string) *StructuredProduct {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		if product := fromJSONLD(doc); product != nil {
			return product
		}
		if product := fromOpenGraph(doc); product != nil {
			return product
		}
	}
	return fromInlinePatterns(html)
}

func fromJSONLD(doc *goquery.Document) *StructuredProduct {
	var found *StructuredProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		decoder := json.NewDecoder(strings.NewReader(s.Text()))
		decoder.UseNumber()

		var data any
		if err := decoder.Decode(&data); err != nil {
			return true
		}
		product := findProductNode(data)
		if product == nil {
			return true
		}
		found = productFromSchema(product)
		return found == nil
	})
	return found
}

// findProductNode returns the first schema.org Product in a JSON-LD value,
// descending into arrays and @graph.
func findProductNode(v any) map[string]any {
	switch node := v.(type) {
	case map[string]any:
		if hasType(node["@type"], "Product") {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findProductNode(graph)
		}
	case []any:
		for _, item := range node {
			if product := findProductNode(item); product != nil {
				return product
			}
		}
	}
	return nil
}

func hasType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func productFromSchema(product map[string]any) *StructuredProduct {
	offer := firstOffer(product["offers"])
	if offer == nil {
		return nil
	}

	price, ok := schemaPrice(offer["price"])
	if !ok {
		price, ok = schemaPrice(offer["lowPrice"])
	}
	if !ok || !price.IsPositive() {
		return nil
	}

	title, _ := product["name"].(string)
	if title = cleanText(title); title == "" {
		title = "Unknown Product"
	}
	currency, _ := offer["priceCurrency"].(string)
	if currency == "" {
		currency = "USD"
	}

	available := true
	if availability, ok := offer["availability"].(string); ok && availability != "" {
		available = false
		for _, value := range availableSchemaValues {
			if strings.Contains(availability, value) {
				available = true
				break
			}
		}
	}

	return &StructuredProduct{
		Title:     title,
		Price:     price,
		Currency:  strings.ToUpper(currency),
		Available: available,
		ImageURL:  schemaImage(product["image"]),
		Method:    MethodJSONLD,
	}
}

func firstOffer(v any) map[string]any {
	switch offers := v.(type) {
	case map[string]any:
		return offers
	case []any:
		for _, item := range offers {
			if offer, ok := item.(map[string]any); ok {
				return offer
			}
		}
	}
	return nil
}

func schemaPrice(v any) (decimal.Decimal, bool) {
	switch p := v.(type) {
	case json.Number:
		value, err := decimal.NewFromString(p.String())
		return value, err == nil
	case string:
		value, _, err := defaultPriceParser.ParsePrice(p)
		return value, err == nil
	}
	return decimal.Zero, false
}

func schemaImage(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		if len(img) > 0 {
			return schemaImage(img[0])
		}
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return u
		}
	}
	return ""
}

func fromOpenGraph(doc *goquery.Document) *StructuredProduct {
	priceText := metaContent(doc, "og:price:amount", "product:price:amount")
	title := cleanText(metaContent(doc, "og:title"))
	if priceText == "" || title == "" {
		return nil
	}

	price, _, err := defaultPriceParser.ParsePrice(priceText)
	if err != nil || !price.IsPositive() {
		return nil
	}

	currency := metaContent(doc, "og:price:currency", "product:price:currency")
	if currency == "" {
		currency = "USD"
	}

	availability := strings.ToLower(metaContent(doc, "product:availability", "og:availability"))
	available := !strings.Contains(availability, "out of stock") &&
		!strings.Contains(availability, "oos") &&
		!strings.Contains(availability, "outofstock")

	return &StructuredProduct{
		Title:     title,
		Price:     price,
		Currency:  strings.ToUpper(currency),
		Available: available,
		ImageURL:  metaContent(doc, "og:image"),
		Method:    MethodOpenGraph,
	}
}

// metaContent returns the content of the first meta tag whose property (or
// name) is one of keys.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		selector := `meta[property="` + key + `"], meta[name="` + key + `"]`
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}

func fromInlinePatterns(html string) *StructuredProduct {
	for _, pattern := range inlinePricePatterns {
		match := pattern.FindStringSubmatch(html)
		if match == nil {
			continue
		}
		price, err := decimal.NewFromString(match[1])
		if err != nil || !price.IsPositive() {
			continue
		}

		title := "Product"
		if m := titleTagPattern.FindStringSubmatch(html); m != nil {
			if t := cleanText(m[1]); t != "" {
				title = t
			}
		}
		return &StructuredProduct{
			Title:     title,
			Price:     price,
			Currency:  "USD",
			Available: true,
			Method:    MethodHTMLSearch,
		}
	}
	return nil
}

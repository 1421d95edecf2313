package scraper

import (
	"net/url"
	"strings"
)

// RetailerSelectorSet lists candidate selectors per field, most specific first.
type RetailerSelectorSet struct {
	Price        []string
	Title        []string
	Image        []string
	Availability []string
}

type retailerEntry struct {
	domain    string
	selectors RetailerSelectorSet
}

// Matched in order against the normalized hostname.
var retailerSelectors = []retailerEntry{
	{"amazon.com", RetailerSelectorSet{
		Price: []string{
			".a-price .a-offscreen",
			".a-price-whole",
			`[data-a-color="price"]`,
			"#priceblock_ourprice",
			"#priceblock_dealprice",
		},
		Title:        []string{"#productTitle", "h1.product-title"},
		Image:        []string{"#landingImage", "#imgBlkFront", ".a-dynamic-image"},
		Availability: []string{"#availability span", "#availability", `[data-feature-name="availability"]`},
	}},
	{"walmart.com", RetailerSelectorSet{
		Price: []string{
			`[itemprop="price"]`,
			`[data-automation-id="product-price"]`,
			".price-characteristic",
			`span[class*="price"]`,
		},
		Title:        []string{`h1[itemprop="name"]`, "h1", `[data-automation-id="product-title"]`},
		Image:        []string{`img[data-testid="hero-image"]`, "img.hover-zoom-hero-image", `img[itemprop="image"]`},
		Availability: []string{`[data-automation-id="fulfillment-badge"]`, ".prod-fulfillment-option"},
	}},
	{"target.com", RetailerSelectorSet{
		Price: []string{
			`[data-test="product-price"]`,
			`span[data-test="current-price"]`,
			`div[data-test="product-price"] span`,
		},
		Title:        []string{`h1[data-test="product-title"]`, "h1"},
		Image:        []string{`img[data-test="product-image"]`, "picture img"},
		Availability: []string{`div[data-test="shipItButton"]`, `div[data-test="fulfillment-cell"]`},
	}},
	{"bestbuy.com", RetailerSelectorSet{
		Price: []string{
			`[data-testid="customer-price"]`,
			".priceView-hero-price span",
			".priceView-customer-price span",
			`div[class*="priceView"] span`,
			`[class*="pricing"] [class*="price"]`,
		},
		Title: []string{`h1[class*="heading"]`, "h1.heading-5", "div.sku-title h1", "h1"},
		Image: []string{"img.primary-image", `img[class*="primary"]`, "button.picture-wrapper img", `img[alt*="product"]`},
		Availability: []string{
			"[data-button-state]",
			".fulfillment-fulfillment-summary",
			"div.fulfillment-add-to-cart-button",
			`button[class*="add-to-cart"]`,
		},
	}},
	{"homedepot.com", RetailerSelectorSet{
		Price:        []string{`div[data-testid="price-format__main-price"] span`, ".price", `[data-testid="price"]`},
		Title:        []string{`h1[data-testid="product-title"]`, "h1.product-title"},
		Image:        []string{"img.mediaBrowser__image", `img[data-testid="product-image"]`},
		Availability: []string{`[data-testid="fulfillment-summary"]`, `button[data-testid="add-to-cart"]`, ".fulfillment__group"},
	}},
	{"ebay.com", RetailerSelectorSet{
		Price: []string{
			".x-price-primary span.ux-textspans",
			`[itemprop="price"]`,
			".x-bin-price__content span",
			"div.x-price-section span",
		},
		Title:        []string{"h1.x-item-title__mainTitle", `h1[itemprop="name"]`, "h1.it-ttl"},
		Image:        []string{"img.ux-image-carousel-item", "img#icImg", `img[itemprop="image"]`},
		Availability: []string{".x-quantity__availability", `[data-testid="x-quantity__availability"]`, ".qtyTxt"},
	}},
	{"nike.com", RetailerSelectorSet{
		Price:        []string{`div[data-test="product-price"]`, ".product-price", "div.product-price__wrapper"},
		Title:        []string{"h1#pdp_product_title", `h1[data-test="product-title"]`},
		Image:        []string{"img.css-1fxh5tw", `img[data-testid="product-image"]`},
		Availability: []string{`div[data-test="product-availability"]`, ".availability-preview"},
	}},
}

// DefaultSelectors work on many generic storefronts.
var DefaultSelectors = RetailerSelectorSet{
	Price: []string{
		`[itemprop="price"]`,
		`[class*="price"]`,
		`[id*="price"]`,
		"span.price",
		"div.price",
		`meta[property="product:price:amount"]`,
		"span[data-price]",
	},
	Title: []string{
		`h1[itemprop="name"]`,
		"h1",
		`[itemprop="name"]`,
		`meta[property="og:title"]`,
		".product-title",
		`[class*="product-title"]`,
	},
	Image: []string{
		`img[itemprop="image"]`,
		`meta[property="og:image"]`,
		"img.product-image",
		`[class*="product-image"]`,
		`img[data-testid="product-image"]`,
	},
	Availability: []string{
		`[itemprop="availability"]`,
		`meta[property="product:availability"]`,
		".availability",
		`[class*="stock"]`,
		`[class*="availability"]`,
		`button[data-testid="add-to-cart"]`,
	},
}

// Retailers the remote browser path is used for. Other storefronts go
// straight to HTML extraction.
var supportedRetailers = []string{
	"amazon.com",
	"walmart.com",
	"target.com",
	"bestbuy.com",
	"homedepot.com",
	"ebay.com",
}

// NormalizeHost lower-cases a hostname and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// SelectorsForHost returns the selector set of the first retailer whose
// domain appears in host, or DefaultSelectors.
func SelectorsForHost(host string) RetailerSelectorSet {
	host = NormalizeHost(host)
	for _, entry := range retailerSelectors {
		if strings.Contains(host, entry.domain) {
			return entry.selectors
		}
	}
	return DefaultSelectors
}

// SelectorsForURL is SelectorsForHost for a full URL. Unparseable URLs get
// the default set.
func SelectorsForURL(rawURL string) RetailerSelectorSet {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultSelectors
	}
	return SelectorsForHost(u.Hostname())
}

// IsSupportedRetailer reports whether host belongs to a retailer served by
// the remote browser.
func IsSupportedRetailer(host string) bool {
	host = NormalizeHost(host)
	for _, domain := range supportedRetailers {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

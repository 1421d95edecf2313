package scraper

import (
	"regexp"
	"strings"
)

const (
	maxHeadChars     = 10000
	maxChunkChars    = 2000
	maxRelevantChars = 30000
	fallbackChars    = 20000
)

var (
	headPattern   = regexp.MustCompile(`(?i)<head[^>]*>[\s\S]*?</head>`)
	blockSplitter = regexp.MustCompile(`(?i)<(?:div|section|article)`)
	chunkKeywords = []string{"price", "cost", "buy", "cart", "product", "amount"}
)

// RelevantHTML trims a page down to the parts most likely to mention the
// price: the <head> plus block-level chunks containing commerce keywords.
// Pages where fewer than two parts qualify fall back to their first 20000
// characters. The result never exceeds 30000 characters.
func RelevantHTML(html string) string {
	var parts []string
	total := 0

	if head := headPattern.FindString(html); head != "" {
		head = truncate(head, maxHeadChars)
		parts = append(parts, head)
		total += len(head)
	}

	for _, chunk := range blockSplitter.Split(html, -1) {
		lower := strings.ToLower(chunk)
		if !containsAny(lower, chunkKeywords) {
			continue
		}
		chunk = truncate(chunk, maxChunkChars)
		parts = append(parts, chunk)
		total += len(chunk)
		if total > maxRelevantChars {
			break
		}
	}

	if len(parts) < 2 {
		return truncate(html, fallbackChars)
	}
	return truncate(strings.Join(parts, "\n"), maxRelevantChars)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

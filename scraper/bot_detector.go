package scraper

import (
	"regexp"
	"strings"
)

// Block types reported by BotDetector.
const (
	BlockCaptcha   = "captcha"
	BlockHTTPError = "http_error"
	BlockBotWall   = "bot_wall"
)

type weightedPattern struct {
	re     *regexp.Regexp
	weight float64
	kind   string
}

// BotDetector scores page text for signs that a retailer served a bot wall
// or CAPTCHA instead of the product page.
type BotDetector struct {
	patterns  []weightedPattern
	threshold float64
}

// NewBotDetector creates a new bot detector
func NewBotDetector() *BotDetector {
	bd := &BotDetector{threshold: 0.3}
	bd.add(0.3, BlockBotWall,
		`unfortunately we are unable`,
		`access denied`,
		`bot detected`,
		`are you a robot`,
		`security check`,
		`checking your browser`,
		`ddos protection`,
		`request blocked`,
		`pardon our interruption`,
	)
	bd.add(0.5, BlockCaptcha,
		`captcha`,
		`verify you are (a )?human`,
		`select all images`,
		`click the checkbox`,
		`press (and|&) hold`,
	)
	bd.add(0.4, BlockHTTPError,
		`403 forbidden`,
		`429 too many requests`,
		`503 service unavailable`,
		`site temporarily unavailable`,
	)
	return bd
}

func (bd *BotDetector) add(weight float64, kind string, exprs ...string) {
	for _, expr := range exprs {
		bd.patterns = append(bd.patterns, weightedPattern{
			re:     regexp.MustCompile(`(?i)` + expr),
			weight: weight,
			kind:   kind,
		})
	}
}

// Detection is the outcome of a bot-wall check.
type Detection struct {
	Blocked bool
	Kind    string
	Score   float64
	Reasons []string
}

// Detect scores pageText and pageTitle. Short pages with any signal score
// higher since real product pages are long.
func (bd *BotDetector) Detect(pageText, pageTitle string) Detection {
	content := pageTitle + " " + pageText

	var d Detection
	kindScore := map[string]float64{}
	for _, p := range bd.patterns {
		if p.re.MatchString(content) {
			d.Score += p.weight
			kindScore[p.kind] += p.weight
			d.Reasons = append(d.Reasons, p.re.String())
		}
	}

	if d.Score > 0 && len(strings.TrimSpace(pageText)) < 1000 {
		d.Score += 0.2
	}
	if d.Score > 1 {
		d.Score = 1
	}

	d.Blocked = d.Score > bd.threshold
	if d.Blocked {
		d.Kind = dominantKind(kindScore)
	}
	return d
}

func dominantKind(scores map[string]float64) string {
	if scores[BlockCaptcha] > 0 {
		return BlockCaptcha
	}
	if scores[BlockHTTPError] > scores[BlockBotWall] {
		return BlockHTTPError
	}
	return BlockBotWall
}

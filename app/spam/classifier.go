// Package spam assigns a heuristic spam score to articles. Flagged
// articles are labeled, not dropped, so downstream consumers can
// filter them and operators can audit or undo the verdict.
package spam

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/newssift/newssift/app/dedup"
	"github.com/newssift/newssift/app/source"
	"github.com/newssift/newssift/app/store"
)

const (
	// Threshold is the score at or above which an article is labeled
	// spam. Empirically chosen, kept as-is rather than re-derived.
	Threshold = 50

	// recencyWindowSize bounds the sliding window of recently
	// classified articles used for the cheap near-duplicate signal.
	recencyWindowSize = 100

	nearDuplicateThreshold = 0.85
	looseSimilarThreshold  = 0.7
)

// Point values per signal group.
const (
	patternPoints       = 20
	keywordFewPoints    = 10
	keywordManyPoints   = 30
	emojiManyPoints     = 10
	emojiExcessPoints   = 25
	capsPoints          = 20
	punctuationPoints   = 15
	shortBodyLinkPoints = 20
	nearDuplicatePoints = 40
	looseSimilarPoints  = 15
	sourceNamePoints    = 15
)

// Promotional, clickbait and referral phrasing. Each match adds a
// fixed amount.
var spamPatterns = compileAll([]string{
	`(?i)(bitcoin|crypto|trading|profit)\b.*(now|instant|fast|guaranteed)`,
	`(?i)🚀.*(moon|pump|explod|soar)`,
	`(?i)(crypto|bitcoin|eth|trading)\b.*(tips?|signals?|group)`,
	`(?i)(offer|discount|sale|deal)\b.*(🔥|⚡|💥)`,
	`(?i)(buy|order|claim)\b.*(now|today|limited)`,
	`(?i)(free|giveaway)\b.*(trial|sample|claim)`,
	`(?i)(channel|group)\b.*(join|follow|subscribe)`,
	`(?i)(t\.me|telegram\.me)/[a-zA-Z0-9_]+`,
	`(?i)(more|further)\b.*(info|details)\b.*(here|link)`,
	`(?i)(shocking|scandal|unbelievable|sensational)\b.*!+`,
	`(?i)(nobody|no one)\b.*(knows|believes|expected)`,
	`(?i)(doctors|experts)\b.*(hate|hide)\b.*(trick|secret)`,
	`[🔥⚡💥🚀💎]{3,}`,
	`[A-Z]{10,}`,
	`!{3,}`,
	`(?i)(affiliate|referral)\b.*(link|code)`,
	`(?i)(bonus|cashback)\b.*(code|link)`,
})

// Contest, referral and get-rich vocabulary for the keyword density
// signal.
var spamKeywords = []string{
	"giveaway", "sweepstakes", "win big", "prize draw",
	"discount code", "coupon", "voucher", "promo code",
	"mlm", "network marketing", "passive income",
	"get rich", "easy money", "no effort",
	"click here", "learn more", "link in bio",
	"dm me", "message me", "contact me",
}

// Source names that tend to carry promotional content.
var spamSourcePatterns = compileAll([]string{
	`(?i)promo`,
	`(?i)offer`,
	`(?i)deal`,
	`(?i)\bads?$`,
	`(?i)affiliate`,
})

var (
	emojiRe       = regexp.MustCompile(`[🔥⚡💥🚀💎💰💵🎯📈📊]`)
	punctuationRe = regexp.MustCompile(`[!?]{3,}`)
)

// Result is the outcome of classifying one article.
type Result struct {
	Score   int
	IsSpam  bool
	Reasons []string
}

// Classifier scores articles against the signal groups and maintains
// the recency window. The window is process-local; after a restart it
// starts empty, which weakens the recency signal for the first cycle
// and nothing else. Not safe for concurrent use; the pipeline
// classifies single-threaded after all fetches join.
type Classifier struct {
	recent []string
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Run scores the article, labels it in place when the score reaches
// the threshold, and adds it to the recency window.
func (c *Classifier) Run(a *store.Article) Result {
	score := 0
	var reasons []string

	add := func(points int, group []string) {
		score += points
		reasons = append(reasons, group...)
	}

	add(c.checkPatterns(a.Title, a.Body))
	add(c.checkKeywords(a.Title, a.Body))
	add(c.checkStructure(a.Title, a.Body))
	add(c.checkRecency(a.Title, a.Body))
	add(c.checkSourceName(a.SourceName))

	result := Result{
		Score:   score,
		IsSpam:  score >= Threshold,
		Reasons: reasons,
	}

	if result.IsSpam {
		a.RelevanceLabel = store.RelevanceSpam
		a.SpamReason = strings.Join(reasons, "; ")
	}

	c.observe(*a)

	return result
}

func (c *Classifier) checkPatterns(title, body string) (int, []string) {
	score := 0
	var reasons []string
	text := title + " " + body

	for _, re := range spamPatterns {
		if re.MatchString(text) {
			score += patternPoints
			reasons = append(reasons, fmt.Sprintf("spam pattern matched: %s", truncatePattern(re.String())))
		}
	}

	return score, reasons
}

func (c *Classifier) checkKeywords(title, body string) (int, []string) {
	text := strings.ToLower(title + " " + body)

	count := 0
	for _, keyword := range spamKeywords {
		if strings.Contains(text, keyword) {
			count++
		}
	}

	// Step function: one repeated keyword must not dominate the score.
	switch {
	case count >= 3:
		return keywordManyPoints, []string{fmt.Sprintf("many spam keywords (%d)", count)}
	case count >= 1:
		return keywordFewPoints, []string{fmt.Sprintf("spam keywords found (%d)", count)}
	default:
		return 0, nil
	}
}

func (c *Classifier) checkStructure(title, body string) (int, []string) {
	score := 0
	var reasons []string
	text := title + " " + body

	emojiCount := len(emojiRe.FindAllString(text, -1))
	if emojiCount > 10 {
		score += emojiExcessPoints
		reasons = append(reasons, fmt.Sprintf("excessive emojis (%d)", emojiCount))
	} else if emojiCount > 5 {
		score += emojiManyPoints
		reasons = append(reasons, fmt.Sprintf("many emojis (%d)", emojiCount))
	}

	if titleLen := utf8.RuneCountInString(title); titleLen > 10 {
		upper := 0
		for _, r := range title {
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if float64(upper)/float64(titleLen) > 0.7 {
			score += capsPoints
			reasons = append(reasons, "excessive uppercase in title")
		}
	}

	if runs := len(punctuationRe.FindAllString(text, -1)); runs > 0 {
		score += punctuationPoints
		reasons = append(reasons, fmt.Sprintf("excessive punctuation (%d runs)", runs))
	}

	if len(body) < 50 && (strings.Contains(body, "http") || strings.Contains(body, "t.me")) {
		score += shortBodyLinkPoints
		reasons = append(reasons, "very short body with link")
	}

	return score, reasons
}

func (c *Classifier) checkRecency(title, body string) (int, []string) {
	score := 0
	var reasons []string
	text := recencyText(title, body)

	for _, recent := range c.recent {
		similarity := dedup.Similarity(text, recent)
		if similarity > nearDuplicateThreshold {
			score += nearDuplicatePoints
			reasons = append(reasons, fmt.Sprintf("near-duplicate of recent article (%.2f)", similarity))
			break
		}
		if similarity > looseSimilarThreshold {
			score += looseSimilarPoints
			reasons = append(reasons, fmt.Sprintf("similar to recent article (%.2f)", similarity))
		}
	}

	return score, reasons
}

func (c *Classifier) checkSourceName(name string) (int, []string) {
	score := 0
	var reasons []string

	for _, re := range spamSourcePatterns {
		if re.MatchString(name) {
			score += sourceNamePoints
			reasons = append(reasons, fmt.Sprintf("promotional source name: %s", name))
		}
	}

	return score, reasons
}

func (c *Classifier) observe(a store.Article) {
	c.recent = append(c.recent, recencyText(a.Title, a.Body))
	if len(c.recent) > recencyWindowSize {
		c.recent = c.recent[len(c.recent)-recencyWindowSize:]
	}
}

func recencyText(title, body string) string {
	return strings.ToLower(strings.TrimSpace(title + " " + source.BodyPrefix(body)))
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

func truncatePattern(p string) string {
	runes := []rune(p)
	if len(runes) > 30 {
		return string(runes[:30]) + "..."
	}
	return p
}

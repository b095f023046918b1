package relevance

import (
	"regexp"
	"strings"
	"time"
)

// Weights for the retrieval formula (tag, insight, recency) and the
// discovery formula (tag, best insight across a candidate's domains).
const (
	RetrievalTagWeight     = 0.5
	RetrievalInsightWeight = 0.3
	RetrievalRecencyWeight = 0.2

	DiscoveryTagWeight     = 0.6
	DiscoveryInsightWeight = 0.4

	// Partial credit for a keyword that appears only as a substring of
	// a tag, granted at most once per keyword.
	substringCredit = 0.5

	// Recency decays linearly to zero over this many days.
	recencyHorizonDays = 90
)

var (
	nonWord   = regexp.MustCompile(`\W+`)
	tagSplit  = regexp.MustCompile(`[-_\s]+`)
	stopwords = map[string]struct{}{}
)

func init() {
	for _, w := range strings.Fields(
		"a an the and or but in on at to for of with by from as is was are were be " +
			"been being have has had do does did will would could should may might can " +
			"shall not no nor so if then than that this these those it its i me my we " +
			"us our you your he him his she her they them their what which who when " +
			"where how why all each every any some about up out just also very") {
		stopwords[w] = struct{}{}
	}
}

// ExtractKeywords splits free text on non-word characters, lowercases,
// and drops stopwords and single-character tokens.
func ExtractKeywords(text string) []string {
	var keywords []string
	for _, tok := range nonWord.Split(text, -1) {
		tok = strings.ToLower(tok)
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}

// TagOverlap scores the fraction of keywords found as whole tokens
// inside any tag, with half credit for substring-only matches,
// normalized by keyword count. Zero when there are no tags.
func TagOverlap(keywords, tags []string) float64 {
	if len(tags) == 0 || len(keywords) == 0 {
		return 0
	}

	tagWords := make(map[string]struct{})
	lowered := make([]string, len(tags))
	for i, tag := range tags {
		lowered[i] = strings.ToLower(tag)
		for _, w := range tagSplit.Split(lowered[i], -1) {
			if w != "" {
				tagWords[w] = struct{}{}
			}
		}
	}

	var hits float64
	for _, kw := range keywords {
		if _, ok := tagWords[kw]; ok {
			hits++
			continue
		}
		for _, tag := range lowered {
			if strings.Contains(tag, kw) {
				hits += substringCredit
				break
			}
		}
	}
	return hits / float64(len(keywords))
}

// InsightMatch scores the fraction of keywords present as whole words
// in the free text.
func InsightMatch(keywords []string, text string) float64 {
	if text == "" || len(keywords) == 0 {
		return 0
	}

	words := make(map[string]struct{})
	for _, w := range nonWord.Split(strings.ToLower(text), -1) {
		if len(w) > 1 {
			words[w] = struct{}{}
		}
	}

	var hits float64
	for _, kw := range keywords {
		if _, ok := words[kw]; ok {
			hits++
		}
	}
	return hits / float64(len(keywords))
}

// Recency decays linearly from 1 (now) to 0 (90+ days old). Zero for
// the zero time.
func Recency(timestamp time.Time, now time.Time) float64 {
	if timestamp.IsZero() {
		return 0
	}
	ageDays := now.Sub(timestamp).Hours() / 24
	score := 1 - ageDays/recencyHorizonDays
	if score < 0 {
		return 0
	}
	return score
}

// RetrievalScore combines the three signals with the retrieval weights.
func RetrievalScore(keywords, tags []string, insight string, timestamp, now time.Time) float64 {
	return TagOverlap(keywords, tags)*RetrievalTagWeight +
		InsightMatch(keywords, insight)*RetrievalInsightWeight +
		Recency(timestamp, now)*RetrievalRecencyWeight
}

// DiscoveryScore combines tag overlap with the best insight match
// across a domain's insights using the discovery weights.
func DiscoveryScore(keywords, tags []string, insights []string) float64 {
	var bestInsight float64
	for _, insight := range insights {
		if s := InsightMatch(keywords, insight); s > bestInsight {
			bestInsight = s
		}
	}
	return TagOverlap(keywords, tags)*DiscoveryTagWeight + bestInsight*DiscoveryInsightWeight
}

// MatchedTags returns the tags whose normalized form contains a keyword
// or splits into a token equal to one, for explainability.
func MatchedTags(keywords, tags []string) []string {
	var matched []string
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		parts := tagSplit.Split(lower, -1)
		for _, kw := range keywords {
			hit := strings.Contains(lower, kw)
			if !hit {
				for _, p := range parts {
					if p == kw {
						hit = true
						break
					}
				}
			}
			if hit {
				matched = append(matched, tag)
				break
			}
		}
	}
	return matched
}

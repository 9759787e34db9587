package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

// ContinuityScorer decides whether two adjacent text spans belong in the same
// chunk. Implementations must be deterministic.
type ContinuityScorer interface {
	// Continuous reports whether span next flows on from span prev.
	Continuous(prev, next string) bool
}

// RuleScorer is the default ContinuityScorer. It evaluates a fixed precedence
// of rules where structural signals dominate and lexical similarity is only a
// fallback when no structural cue fires.
type RuleScorer struct{}

var _ ContinuityScorer = (*RuleScorer)(nil)

// NewRuleScorer creates the default rule-based continuity scorer.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{}
}

const (
	tokenOverlapThreshold = 0.25
	nounOverlapThreshold  = 0.3

	// substantialProseChars is the length of preceding text above which a
	// citation in the next span signals a topic shift.
	substantialProseChars = 100
)

var (
	// The numeric branch requires an uppercase continuation and must stay
	// case-sensitive: "3) supporting documents;" is a list item, not a
	// heading. Only the keywords case-fold.
	structuralBreakPattern = regexp.MustCompile(
		`^(?:(?i:chapter|part|article|section|sec\.|§)\s*[0-9IVXLCivxlc]|[0-9]+(?:\.[0-9]+)*[.)]?\s+\p{Lu}|(?i:table|figure|appendix|schedule|annex)\s+[0-9IVXLCivxlc])`)

	listItemPattern = regexp.MustCompile(
		`^(?:\([0-9a-z]+\)|\([ivxlc]+\)|[0-9]+[.)]\s|[a-z][.)]\s|[ivxlc]+[.)]\s)`)

	caseCitationPattern = regexp.MustCompile(
		`\b[A-Z][\w.&'-]*\s+v\.?\s+[A-Z]|\[(?:19|20)\d{2}\]|\b\d+\s+U\.S\.\s+\d+|\b\d+\s+F\.(?:2d|3d|4th)?\s*\d+`)

	citationSignalPattern = regexp.MustCompile(`(?:^|\W)(?:See|Cf\.|Id\.|Ibid\.)\s`)
)

// discourseConnectives open a span that continues the previous sentence's
// line of thought.
var discourseConnectives = []string{
	"and", "but", "or", "however", "therefore", "thus", "moreover",
	"furthermore", "accordingly", "consequently", "nevertheless", "nonetheless",
	"similarly", "likewise", "further", "also", "indeed", "instead", "hence",
}

// Continuous applies the rule precedence; the first matching rule wins.
func (s *RuleScorer) Continuous(prev, next string) bool {
	prev = strings.TrimSpace(prev)
	next = strings.TrimSpace(next)

	// 1. Structural break opens the next span.
	if structuralBreakPattern.MatchString(next) {
		return false
	}

	// 2. Previous sentence is still open.
	if !endsWithTerminalPunctuation(prev) {
		return true
	}

	// 3. Lowercase start or discourse connective.
	if startsLowercase(next) || startsWithConnective(next) {
		return true
	}

	// 4. Citation after substantial prose signals a topic shift.
	if ContainsCitation(next) && len(prev) > substantialProseChars {
		return false
	}

	// 5. List item continues an enumeration.
	if listItemPattern.MatchString(next) {
		return true
	}

	// 6. Lexical token overlap.
	if tokenOverlapRatio(prev, next) > tokenOverlapThreshold {
		return true
	}

	// 7. Noun-phrase overlap.
	if nounOverlapRatio(prev, next) > nounOverlapThreshold {
		return true
	}

	// 8. Default.
	return false
}

// ContainsCitation reports whether text carries a legal-citation pattern:
// a case cite, a year in brackets, a reporter cite, or a See/Cf./Id. signal.
func ContainsCitation(text string) bool {
	return caseCitationPattern.MatchString(text) || citationSignalPattern.MatchString(text)
}

func endsWithTerminalPunctuation(text string) bool {
	if text == "" {
		return false
	}
	trimmed := strings.TrimRight(text, `"')]`+"”")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '?', '!':
		return true
	}
	return false
}

func startsLowercase(text string) bool {
	for _, r := range text {
		return unicode.IsLower(r)
	}
	return false
}

func startsWithConnective(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimRight(fields[0], ",;:"))
	for _, c := range discourseConnectives {
		if first == c {
			return true
		}
	}
	return false
}

// tokenOverlapRatio counts shared tokens longer than two characters,
// normalized by the smaller span's token-set size.
func tokenOverlapRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	smaller, larger := setA, setB
	if len(setB) < len(setA) {
		smaller, larger = setB, setA
	}

	shared := 0
	for token := range smaller {
		if _, ok := larger[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

// nounOverlapRatio approximates noun-phrase overlap using capitalized tokens
// that do not open a sentence.
func nounOverlapRatio(a, b string) float64 {
	setA := nounSet(a)
	setB := nounSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	smaller, larger := setA, setB
	if len(setB) < len(setA) {
		smaller, larger = setB, setA
	}

	shared := 0
	for noun := range smaller {
		if _, ok := larger[noun]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, field := range strings.Fields(text) {
		token := strings.ToLower(strings.Trim(field, `.,;:!?()[]"'`))
		if len(token) > 2 {
			set[token] = struct{}{}
		}
	}
	return set
}

func nounSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	fields := strings.Fields(text)
	sentenceStart := true
	for _, field := range fields {
		token := strings.Trim(field, `.,;:!?()[]"'`)
		if len(token) > 2 && !sentenceStart && unicode.IsUpper(rune(token[0])) {
			set[strings.ToLower(token)] = struct{}{}
		}
		sentenceStart = strings.ContainsAny(field, ".!?")
	}
	return set
}

package chunker

import (
	"regexp"
	"strings"

	"github.com/lexgrove/evidentia/core"
)

// MetadataExtractor derives citation and structure metadata from chunk text.
// Implementations must be deterministic; extraction failures are expressed as
// empty metadata, never as errors.
type MetadataExtractor interface {
	Extract(text string) core.ChunkMetadata
}

// RegexExtractor is the default MetadataExtractor, built on the same pattern
// families the continuity scorer uses.
type RegexExtractor struct{}

var _ MetadataExtractor = (*RegexExtractor)(nil)

// NewRegexExtractor creates the default metadata extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

const citeParty = `(?:(?:[A-Z]\.)+[A-Z]?|[A-Z][\w&'-]*)`

var (
	sectionHeaderPattern = regexp.MustCompile(
		`(?im)^(?:(?:chapter|part|article|section)\s+[0-9ivxlc][0-9a-z.()\-]*|[0-9]+(?:\.[0-9]+)+\s+\p{Lu}[^\n]*|§\s*[0-9][0-9a-z.()\-]*)[^\n]*`)

	// A party token is a capitalized word or a dotted abbreviation
	// ("N.L.R.B."). The sentence period stays outside the word form so a
	// citation never runs across a sentence boundary.
	caseCitePattern = regexp.MustCompile(
		`\b` + citeParty + `(?:\s+` + citeParty + `)*\s+v\.?\s+` + citeParty + `(?:\s+` + citeParty + `)*`)

	statuteRefPattern = regexp.MustCompile(
		`\b\d+\s+U\.S\.C\.\s+§+\s*[\d\w().\-]+|\b(?:Article|Section)\s+\d+[\w.()]*\s+of\s+the\s+[A-Z][^,.;\n]*|§+\s*\d+[\w.()\-]*`)
)

// reasoningMarkers maps a detected pattern to its reasoning tag.
var reasoningMarkers = []struct {
	marker string
	tag    string
}{
	{"we hold", "holding"},
	{"held that", "holding"},
	{"the court concludes", "holding"},
	{"whether", "issue"},
	{"the standard", "rule"},
	{"the test", "rule"},
	{"pursuant to", "rule"},
	{"applying", "application"},
	{"in this case", "application"},
	{"accordingly", "conclusion"},
	{"for the foregoing reasons", "conclusion"},
	{"dissent", "dissent"},
	{"concurring", "concurrence"},
}

// Extract pattern-matches section headers, case citations, statute references
// and reasoning markers out of the chunk text.
func (e *RegexExtractor) Extract(text string) core.ChunkMetadata {
	meta := core.ChunkMetadata{}

	if header := sectionHeaderPattern.FindString(text); header != "" {
		meta.SectionHeader = strings.TrimSpace(header)
	}

	meta.CaseCitations = dedupe(caseCitePattern.FindAllString(text, -1))
	meta.StatuteRefs = dedupe(statuteRefPattern.FindAllString(text, -1))

	lower := strings.ToLower(text)
	var tags []string
	for _, m := range reasoningMarkers {
		if strings.Contains(lower, m.marker) {
			tags = append(tags, m.tag)
		}
	}
	meta.ReasoningTags = dedupe(tags)

	return meta
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if _, ok := seen[item]; ok || item == "" {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

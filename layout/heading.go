package layout

import (
	"regexp"

	"github.com/lexgrove/evidentia/core"
)

// sectionMatch is the result of matching a numbered/titled section pattern.
type sectionMatch struct {
	top    bool   // CHAPTER/PART/ARTICLE style prefix
	number string // section number token, e.g. "3" or "1.2"
}

var (
	// "Chapter 3", "PART II", "Article 12"
	topSectionPattern = regexp.MustCompile(`(?i)^(?:chapter|part|article)\s+([0-9]+|[ivxlcdm]+)\b`)

	// "Section 4", "Sec. 4(b)", "§ 12"
	wordSectionPattern = regexp.MustCompile(`(?i)^(?:section|sec\.|§)\s*([0-9][0-9a-z.()\-]*)`)

	// "1.2 Foo", "3) Definitions", "2. Scope"
	numberedSectionPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)*)[.)]?\s+\p{Lu}`)
)

// matchSectionPattern returns the section match for a numbered/titled heading,
// or nil when the text does not open a section.
func matchSectionPattern(text string) *sectionMatch {
	if m := topSectionPattern.FindStringSubmatch(text); m != nil {
		return &sectionMatch{top: true, number: m[1]}
	}
	if m := wordSectionPattern.FindStringSubmatch(text); m != nil {
		return &sectionMatch{number: m[1]}
	}
	if m := numberedSectionPattern.FindStringSubmatch(text); m != nil {
		return &sectionMatch{number: m[1]}
	}
	return nil
}

// headingLevel assigns a level 1-3. CHAPTER/PART/ARTICLE prefixes and the
// largest fonts map to 1, Section/numeric prefixes and moderately large fonts
// to 2, everything else to 3.
func headingLevel(run core.TextRun, avgFont float64, match *sectionMatch) int {
	if match != nil && match.top {
		return 1
	}
	if hasGeometry(run) && fontSize(run) > level1FontRatio*avgFont {
		return 1
	}
	if match != nil {
		return 2
	}
	if hasGeometry(run) && fontSize(run) >= level2FontRatio*avgFont {
		return 2
	}
	return 3
}

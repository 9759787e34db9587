package chunker

import "strings"

// argPhase is the argumentative phase of a case-law passage, detected by
// keyword heuristics. Phase changes force chunk boundaries under the case-law
// policy so issue statements, rules, application and holdings stay separable.
type argPhase int

const (
	phaseUnknown argPhase = iota
	phaseIssue
	phaseRule
	phaseApplication
	phaseConclusion
)

var phaseKeywords = map[argPhase][]string{
	phaseIssue: {
		"whether", "the question presented", "at issue", "the issue is",
		"presents the question", "we must decide",
	},
	phaseRule: {
		"the standard", "pursuant to", "the rule", "we review",
		"it is well established", "under the statute", "the test",
	},
	phaseApplication: {
		"in this case", "here,", "applying", "the record shows",
		"turning to", "on these facts",
	},
	phaseConclusion: {
		"accordingly", "we hold", "we conclude", "therefore",
		"for the foregoing reasons", "the judgment is", "affirmed", "reversed",
	},
}

// detectPhase scores each phase by keyword hits and returns the best match,
// or phaseUnknown when nothing fires.
func detectPhase(text string) argPhase {
	lower := strings.ToLower(text)

	best := phaseUnknown
	bestHits := 0
	// Fixed iteration order keeps detection deterministic on ties.
	for _, phase := range []argPhase{phaseIssue, phaseRule, phaseApplication, phaseConclusion} {
		hits := 0
		for _, keyword := range phaseKeywords[phase] {
			hits += strings.Count(lower, keyword)
		}
		if hits > bestHits {
			best = phase
			bestHits = hits
		}
	}
	return best
}

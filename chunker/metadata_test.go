package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_SectionHeader(t *testing.T) {
	e := NewRegexExtractor()

	meta := e.Extract("Section 12 Transitional provisions\nthe following provisions apply until repeal.")
	assert.Equal(t, "Section 12 Transitional provisions", meta.SectionHeader)

	meta = e.Extract("1.2 Scope of application\nthis chapter applies to covered entities.")
	assert.Equal(t, "1.2 Scope of application", meta.SectionHeader)
}

func TestExtract_CaseCitations(t *testing.T) {
	e := NewRegexExtractor()

	meta := e.Extract("The court relied on Smith v. Jones and distinguished Anderson v. Liberty Lobby. " +
		"Smith v. Jones remains the controlling authority.")

	require.Len(t, meta.CaseCitations, 2, "duplicate citations are collapsed")
	assert.Contains(t, meta.CaseCitations, "Smith v. Jones")
	assert.Contains(t, meta.CaseCitations, "Anderson v. Liberty Lobby",
		"a citation stops at the sentence boundary")
}

func TestExtract_CaseCitations_AbbreviatedParty(t *testing.T) {
	e := NewRegexExtractor()

	meta := e.Extract("the rule from N.L.R.B. v. Noel Canning applies here.")
	assert.Contains(t, meta.CaseCitations, "N.L.R.B. v. Noel Canning")
}

func TestExtract_StatuteRefs(t *testing.T) {
	e := NewRegexExtractor()

	meta := e.Extract("Liability arises under 42 U.S.C. § 1983 and Article 6 of the Convention, " +
		"as implemented by § 12.4(b).")

	assert.NotEmpty(t, meta.StatuteRefs)
	assert.Contains(t, meta.StatuteRefs, "42 U.S.C. § 1983")
}

func TestExtract_ReasoningTags(t *testing.T) {
	e := NewRegexExtractor()

	meta := e.Extract("We hold that the claim is timely. Applying the discovery rule, " +
		"the period began in 2020. Accordingly, the judgment is reversed.")

	assert.Contains(t, meta.ReasoningTags, "holding")
	assert.Contains(t, meta.ReasoningTags, "application")
	assert.Contains(t, meta.ReasoningTags, "conclusion")
}

func TestExtract_EmptyText(t *testing.T) {
	e := NewRegexExtractor()

	meta := e.Extract("plain narrative text with no legal structure at all")
	assert.Empty(t, meta.SectionHeader)
	assert.Empty(t, meta.CaseCitations)
	assert.Empty(t, meta.StatuteRefs)
	assert.Empty(t, meta.ReasoningTags)
}

package layout

import (
	"testing"

	"github.com/lexgrove/evidentia/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(text string, x, y, w, fontSize float64) core.TextRun {
	return core.TextRun{Text: text, X: x, Y: y, Width: w, Height: fontSize * 1.2, FontSize: fontSize}
}

func bodyRun(text string) core.TextRun {
	return run(text, 72, 700, 450, 12)
}

func testPage(runs ...core.TextRun) Page {
	return Page{Number: 1, Width: 612, Height: 792, Runs: runs}
}

func TestNormalizePage_GroupsRunsUntilBlank(t *testing.T) {
	n := NewNormalizer()

	paragraphs := n.NormalizePage(testPage(
		bodyRun("The plaintiff filed suit in March."),
		bodyRun("The defendant answered in April."),
		bodyRun("   "),
		bodyRun("Discovery closed in June."),
	))

	require.Len(t, paragraphs, 2)
	assert.Equal(t, "The plaintiff filed suit in March. The defendant answered in April.", paragraphs[0].Text)
	assert.Equal(t, "Discovery closed in June.", paragraphs[1].Text)
	assert.False(t, paragraphs[0].Heading)
	assert.Len(t, paragraphs[0].Rects, 2)
	assert.Equal(t, 1, paragraphs[0].Page)
}

func TestNormalizePage_FontSizeHeading(t *testing.T) {
	n := NewNormalizer()

	paragraphs := n.NormalizePage(testPage(
		bodyRun("Some body text before the heading that keeps the page average near twelve points."),
		bodyRun("More ordinary body text at the standard size."),
		run("Background", 72, 500, 120, 20),
		bodyRun("The events giving rise to this dispute began in 2019."),
	))

	require.Len(t, paragraphs, 3)
	heading := paragraphs[1]
	assert.True(t, heading.Heading)
	assert.Equal(t, "Background", heading.Text)
	assert.Equal(t, 1, heading.HeadingLevel, "20pt against a 14pt page average exceeds the level-1 band")
}

func TestNormalizePage_UppercaseShortHeading(t *testing.T) {
	n := NewNormalizer()

	paragraphs := n.NormalizePage(testPage(
		bodyRun("Preceding paragraph text."),
		bodyRun("PROCEDURAL HISTORY"),
		bodyRun("The case was removed to federal court."),
	))

	require.Len(t, paragraphs, 3)
	assert.True(t, paragraphs[1].Heading)
	assert.Equal(t, 3, paragraphs[1].HeadingLevel)
}

func TestNormalizePage_CenteredShortHeading(t *testing.T) {
	n := NewNormalizer()

	// Midpoint at 306 of a 612pt page: exactly centered.
	paragraphs := n.NormalizePage(testPage(
		run("Opinion of the Court", 246, 100, 120, 12),
		bodyRun("Justice Example delivered the opinion."),
	))

	require.Len(t, paragraphs, 2)
	assert.True(t, paragraphs[0].Heading)
}

func TestNormalizePage_SectionPatternHeadings(t *testing.T) {
	n := NewNormalizer()

	paragraphs := n.NormalizePage(testPage(
		bodyRun("Article 3"),
		bodyRun("Each party shall take appropriate measures."),
		bodyRun("1.2 Reporting obligations"),
		bodyRun("Reports shall be submitted annually."),
	))

	require.Len(t, paragraphs, 4)

	article := paragraphs[0]
	assert.True(t, article.Heading)
	assert.Equal(t, 1, article.HeadingLevel)
	assert.Equal(t, "3", article.SectionNumber)

	numbered := paragraphs[2]
	assert.True(t, numbered.Heading)
	assert.Equal(t, 2, numbered.HeadingLevel)
	assert.Equal(t, "1.2", numbered.SectionNumber)
}

func TestNormalizePage_MalformedRunTolerated(t *testing.T) {
	n := NewNormalizer()

	// No font size and no width: geometry heuristics must be skipped, the
	// run still lands in a paragraph.
	paragraphs := n.NormalizePage(testPage(
		core.TextRun{Text: "Text from a run with no transform data."},
		bodyRun("Followed by a normal run."),
	))

	require.Len(t, paragraphs, 1)
	assert.Contains(t, paragraphs[0].Text, "no transform data")
}

func TestNormalizeDocument_PreservesPageOrder(t *testing.T) {
	n := NewNormalizer()

	pageOne := Page{Number: 1, Width: 612, Height: 792, Runs: []core.TextRun{bodyRun("First page text.")}}
	pageTwo := Page{Number: 2, Width: 612, Height: 792, Runs: []core.TextRun{bodyRun("Second page text.")}}

	paragraphs := n.NormalizeDocument([]Page{pageOne, pageTwo})

	require.Len(t, paragraphs, 2)
	assert.Equal(t, 1, paragraphs[0].Page)
	assert.Equal(t, 2, paragraphs[1].Page)
}

func TestNormalizeRect_NormalizedCoordinates(t *testing.T) {
	page := testPage()
	rect := normalizeRect(run("x", 306, 396, 153, 12), page)

	assert.InDelta(t, 0.5, rect.X, 1e-9)
	assert.InDelta(t, 0.5, rect.Y, 1e-9)
	assert.InDelta(t, 0.25, rect.Width, 1e-9)
}

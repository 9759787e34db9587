package layout

import (
	"strings"

	"github.com/lexgrove/evidentia/core"
)

const (
	// defaultFontSize is assumed for runs with missing or malformed size data.
	defaultFontSize = 12.0

	// headingFontRatio is the font-size multiple over the page average above
	// which a run is treated as a heading candidate.
	headingFontRatio = 1.15

	// level1FontRatio and level2FontRatio bound the font-size bands used for
	// heading level assignment.
	level1FontRatio = 1.4
	level2FontRatio = 1.2

	// shortRunChars is the length below which uppercase or centered runs are
	// considered heading candidates.
	shortRunChars = 100

	// centerTolerance is the fraction of the page width within which a run's
	// midpoint counts as horizontally centered.
	centerTolerance = 0.15
)

// Page carries the extracted runs of one source page together with its
// dimensions, which the normalizer needs for centering and rect normalization.
type Page struct {
	Number int
	Width  float64
	Height float64
	Runs   []core.TextRun
}

// Normalizer groups text runs into paragraphs.
type Normalizer struct{}

// NewNormalizer creates a paragraph normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeDocument normalizes all pages in order and returns the combined
// paragraph sequence.
func (n *Normalizer) NormalizeDocument(pages []Page) []core.Paragraph {
	var paragraphs []core.Paragraph
	for _, page := range pages {
		paragraphs = append(paragraphs, n.NormalizePage(page)...)
	}
	return paragraphs
}

// NormalizePage groups the page's runs into paragraphs. A paragraph buffer is
// flushed whenever a run is empty or satisfies a heading heuristic; heading
// runs become single-run paragraphs with a level and optional section number.
func (n *Normalizer) NormalizePage(page Page) []core.Paragraph {
	avgFont := averageFontSize(page.Runs)

	var paragraphs []core.Paragraph
	var buf paragraphBuffer

	for _, run := range page.Runs {
		if strings.TrimSpace(run.Text) == "" {
			if p, ok := buf.flush(page.Number); ok {
				paragraphs = append(paragraphs, p)
			}
			continue
		}

		if n.isHeading(run, page, avgFont) {
			if p, ok := buf.flush(page.Number); ok {
				paragraphs = append(paragraphs, p)
			}
			paragraphs = append(paragraphs, n.headingParagraph(run, page, avgFont))
			continue
		}

		buf.add(run, page)
	}

	if p, ok := buf.flush(page.Number); ok {
		paragraphs = append(paragraphs, p)
	}

	return paragraphs
}

// isHeading applies the heading heuristics in order. Geometry-dependent rules
// are skipped for runs with malformed size data.
func (n *Normalizer) isHeading(run core.TextRun, page Page, avgFont float64) bool {
	text := strings.TrimSpace(run.Text)
	short := len(text) < shortRunChars

	if hasGeometry(run) {
		if fontSize(run) > headingFontRatio*avgFont {
			return true
		}
		if short && isCentered(run, page) {
			return true
		}
	}

	if short && isAllUppercase(text) {
		return true
	}

	return matchSectionPattern(text) != nil
}

// headingParagraph builds a single-run heading paragraph with its level.
func (n *Normalizer) headingParagraph(run core.TextRun, page Page, avgFont float64) core.Paragraph {
	text := strings.TrimSpace(run.Text)
	match := matchSectionPattern(text)

	p := core.Paragraph{
		Text:         text,
		Page:         page.Number,
		Rects:        []core.Rect{normalizeRect(run, page)},
		Heading:      true,
		HeadingLevel: headingLevel(run, avgFont, match),
	}
	if match != nil {
		p.SectionNumber = match.number
	}
	return p
}

// paragraphBuffer accumulates runs until a flush boundary.
type paragraphBuffer struct {
	texts []string
	rects []core.Rect
}

func (b *paragraphBuffer) add(run core.TextRun, page Page) {
	b.texts = append(b.texts, strings.TrimSpace(run.Text))
	b.rects = append(b.rects, normalizeRect(run, page))
}

func (b *paragraphBuffer) flush(pageNumber int) (core.Paragraph, bool) {
	if len(b.texts) == 0 {
		return core.Paragraph{}, false
	}
	p := core.Paragraph{
		Text:  strings.Join(b.texts, " "),
		Page:  pageNumber,
		Rects: b.rects,
	}
	b.texts = nil
	b.rects = nil
	return p, true
}

// averageFontSize computes the mean font size over runs with valid size data.
// Returns defaultFontSize when no run carries one.
func averageFontSize(runs []core.TextRun) float64 {
	var sum float64
	var count int
	for _, run := range runs {
		if run.FontSize > 0 {
			sum += run.FontSize
			count++
		}
	}
	if count == 0 {
		return defaultFontSize
	}
	return sum / float64(count)
}

func fontSize(run core.TextRun) float64 {
	if run.FontSize > 0 {
		return run.FontSize
	}
	return defaultFontSize
}

// hasGeometry reports whether the run carries usable position and size data.
func hasGeometry(run core.TextRun) bool {
	return run.FontSize > 0 && run.Width > 0
}

func isCentered(run core.TextRun, page Page) bool {
	if page.Width <= 0 {
		return false
	}
	// A column-spanning line has a centered midpoint too; require the run to
	// be narrower than half the page so only genuinely centered lines match.
	if run.Width >= page.Width*0.5 {
		return false
	}
	mid := run.X + run.Width/2
	return mid > page.Width*(0.5-centerTolerance) && mid < page.Width*(0.5+centerTolerance)
}

func isAllUppercase(text string) bool {
	hasLetter := false
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

// normalizeRect converts a run's page-space box to normalized 0-1 coordinates.
func normalizeRect(run core.TextRun, page Page) core.Rect {
	rect := core.Rect{
		Page:   page.Number,
		X:      run.X,
		Y:      run.Y,
		Width:  run.Width,
		Height: run.Height,
	}
	if page.Width > 0 {
		rect.X /= page.Width
		rect.Width /= page.Width
	}
	if page.Height > 0 {
		rect.Y /= page.Height
		rect.Height /= page.Height
	}
	return rect
}

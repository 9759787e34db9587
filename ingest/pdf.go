package ingest

import (
	"errors"
	"os"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/layout"
)

// PageExtractor turns PDF bytes into positioned page runs. Pluggable so tests
// can feed synthetic pages without binary fixtures.
type PageExtractor interface {
	Extract(data []byte) ([]layout.Page, error)
}

// PDFExtractor extracts positioned text runs using the ledongthuc/pdf reader.
type PDFExtractor struct{}

var _ PageExtractor = (*PDFExtractor)(nil)

// Fallback page size (US Letter, in points) for pages with no MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// yLineTolerance groups fragments whose baselines differ by at most this many
// points into one line run.
const yLineTolerance = 0.5

// Extract parses the PDF and returns one layout.Page per document page.
// The library needs a ReadSeeker with a known size, so the bytes go through
// a temp file.
func (e *PDFExtractor) Extract(data []byte) ([]layout.Page, error) {
	tmp, err := os.CreateTemp("", "evidentia-pdf-*.pdf")
	if err != nil {
		return nil, &FileError{
			Code:       CodeStorageError,
			Reason:     "could not stage the upload for parsing",
			Suggestion: "Check free disk space on the server and retry.",
			Cause:      err,
		}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, &FileError{
			Code:       CodeStorageError,
			Reason:     "could not stage the upload for parsing",
			Suggestion: "Check free disk space on the server and retry.",
			Cause:      err,
		}
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, &FileError{
			Code:       CodePDFParseError,
			Reason:     "the PDF could not be opened",
			Suggestion: "The file may use unsupported encryption or be damaged. Re-export it without password protection.",
			Cause:      err,
		}
	}
	defer f.Close()

	var pages []layout.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		width, height := pageSize(page)
		runs := lineRuns(page.Content().Text)
		pages = append(pages, layout.Page{
			Number: i,
			Width:  width,
			Height: height,
			Runs:   runs,
		})
	}

	if len(pages) == 0 {
		return nil, &FileError{
			Code:       CodePDFParseError,
			Reason:     "no readable pages found",
			Suggestion: "The PDF may contain only scanned images. Run OCR on it first.",
		}
	}

	return pages, nil
}

// pageSize reads the page MediaBox, falling back to US Letter.
func pageSize(page pdflib.Page) (width, height float64) {
	width, height = defaultPageWidth, defaultPageHeight

	box := page.V.Key("MediaBox")
	if box.IsNull() || box.Len() < 4 {
		return width, height
	}

	x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
	x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
	if x1 > x0 && y1 > y0 {
		width, height = x1-x0, y1-y0
	}
	return width, height
}

// lineRuns merges raw PDF text fragments into line-level runs. Fragments are
// sorted top-to-bottom then left-to-right and joined on a shared baseline,
// with a space inserted across word gaps the content stream leaves implicit.
func lineRuns(fragments []pdflib.Text) []core.TextRun {
	if len(fragments) == 0 {
		return nil
	}

	sorted := make([]pdflib.Text, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		// PDF y-axis points up: higher Y comes first in reading order.
		if diff := sorted[i].Y - sorted[j].Y; diff > yLineTolerance || diff < -yLineTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var runs []core.TextRun
	var (
		sb       strings.Builder
		lineY    float64
		startX   float64
		endX     float64
		fontSize float64
		open     bool
	)

	flush := func() {
		if !open {
			return
		}
		text := sb.String()
		if strings.TrimSpace(text) != "" {
			runs = append(runs, core.TextRun{
				Text:     text,
				X:        startX,
				Y:        lineY,
				Width:    endX - startX,
				Height:   fontSize,
				FontSize: fontSize,
			})
		}
		sb.Reset()
		open = false
	}

	for _, frag := range sorted {
		sameLine := open && frag.Y >= lineY-yLineTolerance && frag.Y <= lineY+yLineTolerance
		if !sameLine {
			flush()
			lineY = frag.Y
			startX = frag.X
			endX = frag.X
			fontSize = frag.FontSize
			open = true
		}

		// Word gap: the content stream positions fragments without explicit
		// spaces.
		if gap := frag.X - endX; sb.Len() > 0 && gap > fontSize*0.2 {
			sb.WriteString(" ")
		}
		sb.WriteString(frag.S)

		if right := frag.X + frag.W; right > endX {
			endX = right
		}
		if frag.FontSize > fontSize {
			fontSize = frag.FontSize
		}
	}
	flush()

	return runs
}

// parseFailure wraps a non-FileError parse problem into a FileError.
func parseFailure(err error) *FileError {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr
	}
	return &FileError{
		Code:       CodePDFParseError,
		Reason:     "text extraction failed",
		Suggestion: "The PDF structure could not be read. Re-export the document and retry.",
		Cause:      err,
	}
}

package chunker

import "github.com/lexgrove/evidentia/core"

// Policy is the sizing quadruple applied while chunking one document.
// MaxChars is the soft boundary at which a chunk is closed; MaxChunkChars is
// the hard ceiling. All limits apply to a chunk's core text, excluding the
// seeded overlap window.
type Policy struct {
	MaxChars      int
	MinChars      int
	OverlapChars  int
	MaxChunkChars int
}

// PolicyFor returns the sizing policy for a document type. Statutes and other
// sectioned instruments favor smaller, precise chunks; case law favors larger
// chunks that keep a court's reasoning together.
func PolicyFor(docType core.DocumentType) Policy {
	switch docType {
	case core.DocumentTypeStatute, core.DocumentTypeTreaty,
		core.DocumentTypeRegulation, core.DocumentTypeConstitution:
		return Policy{MaxChars: 1200, MinChars: 200, OverlapChars: 150, MaxChunkChars: 1500}
	case core.DocumentTypeCaseLaw:
		return Policy{MaxChars: 1800, MinChars: 400, OverlapChars: 300, MaxChunkChars: 2200}
	case core.DocumentTypeJournal:
		return Policy{MaxChars: 1600, MinChars: 300, OverlapChars: 250, MaxChunkChars: 2000}
	default:
		return Policy{MaxChars: 1500, MinChars: 300, OverlapChars: 200, MaxChunkChars: 1800}
	}
}

package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Checksum is a content-derived identifier for chunk text.
// Identical text always produces the same checksum, which makes
// chunk insertion idempotent across repeated ingestions.
type Checksum uint64

// ChecksumFromText computes a Checksum from text content using BLAKE2b hashing.
func ChecksumFromText(text string) Checksum {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return Checksum(binary.LittleEndian.Uint64(sum))
}

// DocumentType classifies a source document and selects the chunking policy
// applied during ingestion.
type DocumentType string

const (
	DocumentTypeCaseLaw      DocumentType = "case_law"
	DocumentTypeStatute      DocumentType = "statute"
	DocumentTypeTreaty       DocumentType = "treaty"
	DocumentTypeRegulation   DocumentType = "regulation"
	DocumentTypeConstitution DocumentType = "constitution"
	DocumentTypeJournal      DocumentType = "journal_article"
	DocumentTypeGeneric      DocumentType = "generic"
)

// DocumentTypes lists the valid document type values.
var DocumentTypes = []DocumentType{
	DocumentTypeCaseLaw,
	DocumentTypeStatute,
	DocumentTypeTreaty,
	DocumentTypeRegulation,
	DocumentTypeConstitution,
	DocumentTypeJournal,
	DocumentTypeGeneric,
}

// IsSectioned reports whether the document type is organized into numbered
// sections (statutes, treaties, regulations, constitutions). Sectioned types
// get an extra chunk-boundary rule at section openings.
func (d DocumentType) IsSectioned() bool {
	switch d {
	case DocumentTypeStatute, DocumentTypeTreaty, DocumentTypeRegulation, DocumentTypeConstitution:
		return true
	}
	return false
}

// Rect is an axis-aligned rectangle in normalized page coordinates (0-1),
// used for highlight rendering of chunk provenance.
type Rect struct {
	Page   int
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// TextRun is one positioned run of text as produced by PDF extraction.
// Coordinates are in page space; page dimensions are carried separately.
type TextRun struct {
	Text     string
	X        float64
	Y        float64
	Width    float64
	Height   float64
	FontSize float64
}

// Paragraph is a contiguous run of text sharing a visual block on a page.
// Paragraphs are an intermediate form: produced by layout analysis, consumed
// once by the chunker, never persisted.
type Paragraph struct {
	Text          string
	Page          int
	Rects         []Rect
	Heading       bool
	HeadingLevel  int    // 1-3, meaningful only when Heading is true
	SectionNumber string // e.g. "3" for "Article 3", "1.2" for "1.2 Foo"
}

// ChunkMetadata holds citation and structure metadata extracted from chunk
// text. All fields are optional.
type ChunkMetadata struct {
	SectionHeader string
	CaseCitations []string
	StatuteRefs   []string
	ReasoningTags []string
}

// Chunk is the atomic retrieval unit: a bounded span of document text with
// provenance for highlight rendering and an embedding vector for search.
// Chunks are immutable after ingestion and deleted only with their source.
type Chunk struct {
	SourceID       string // parent Source identifier
	Index          int    // monotonic per document, source order
	Page           int    // first source page of the chunk
	ParagraphIndex int    // index of the first contributing paragraph
	StartOffset    int    // character offset range in the document's logical text stream
	EndOffset      int
	Text           string
	Rects          []Rect
	Checksum       Checksum
	Metadata       ChunkMetadata
	Vector         []float32
	InsertedAt     time.Time
}

// SearchResult pairs a chunk with its similarity score.
type SearchResult struct {
	Chunk *Chunk
	Score float32
}

// SourceStatus tracks the lifecycle of an ingested document.
type SourceStatus int

const (
	// SourceStatusPending indicates ingestion is in progress.
	SourceStatusPending SourceStatus = iota + 1
	// SourceStatusReady indicates chunks and vectors are persisted.
	SourceStatusReady
	// SourceStatusFailed indicates ingestion failed and was rolled back.
	SourceStatusFailed
)

func (s SourceStatus) String() string {
	switch s {
	case SourceStatusPending:
		return "pending"
	case SourceStatusReady:
		return "ready"
	case SourceStatusFailed:
		return "failed"
	}
	return "unknown"
}

// Source is one ingested document.
type Source struct {
	ID         string
	Title      string
	Type       DocumentType
	Pages      int
	ChunkCount int
	Status     SourceStatus
	InsertedAt time.Time
	UpdatedAt  time.Time
}

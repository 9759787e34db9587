// Copyright 2026 Lexgrove Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package chunker

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/lexgrove/evidentia/core"
)

// Chunker converts a paragraph sequence into an ordered chunk sequence under
// a document-type sizing policy.
type Chunker struct {
	docType core.DocumentType
	policy  Policy
	scorer  ContinuityScorer
	meta    MetadataExtractor
	logger  *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithPolicy overrides the document type's default sizing policy.
func WithPolicy(policy Policy) Option {
	return func(c *Chunker) error {
		if policy.MaxChars <= 0 || policy.MinChars <= 0 || policy.MaxChunkChars < policy.MaxChars {
			return ErrInvalidPolicy
		}
		c.policy = policy
		return nil
	}
}

// WithContinuityScorer replaces the default rule-based scorer.
func WithContinuityScorer(scorer ContinuityScorer) Option {
	return func(c *Chunker) error {
		if scorer == nil {
			return ErrScorerRequired
		}
		c.scorer = scorer
		return nil
	}
}

// WithMetadataExtractor replaces the default regex extractor.
func WithMetadataExtractor(extractor MetadataExtractor) Option {
	return func(c *Chunker) error {
		if extractor == nil {
			return ErrExtractorRequired
		}
		c.meta = extractor
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewChunker creates a chunker for the given document type.
func NewChunker(docType core.DocumentType, opts ...Option) (*Chunker, error) {
	if err := core.ValidateDocumentType(docType); err != nil {
		return nil, err
	}

	c := &Chunker{
		docType: docType,
		policy:  PolicyFor(docType),
		scorer:  NewRuleScorer(),
		meta:    NewRegexExtractor(),
		logger:  slog.Default().With("component", "chunker"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Policy returns the sizing policy in effect.
func (c *Chunker) Policy() Policy {
	return c.policy
}

// draft is a chunk under construction. Core text (parts) and the seeded
// overlap prefix are kept separate so size limits and character offsets apply
// to core text only.
type draft struct {
	overlap   string   // overlap window seeded from the previous chunk's tail
	parts     []string // core paragraph texts
	coreLen   int      // total core length including joins
	rects     []core.Rect
	page      int
	paraIndex int
	start     int // core character range in the document's logical text stream
	end       int
	phase     argPhase
}

func (d *draft) add(p core.Paragraph, pEnd int) {
	d.parts = append(d.parts, p.Text)
	d.coreLen += 1 + len(p.Text)
	d.rects = append(d.rects, p.Rects...)
	d.end = pEnd
	if phase := detectPhase(p.Text); phase != phaseUnknown {
		d.phase = phase
	}
}

func (d *draft) coreText() string {
	return strings.Join(d.parts, "\n")
}

// Chunk runs the boundary state machine over the paragraphs and returns the
// finished chunk sequence. Character offsets refer to the logical text stream
// formed by joining paragraph texts with single newlines; they are contiguous
// and non-decreasing across chunk order.
func (c *Chunker) Chunk(paragraphs []core.Paragraph) []core.Chunk {
	paragraphs = c.splitOversized(paragraphs)

	var drafts []*draft
	var buf *draft
	offset := 0

	for i, p := range paragraphs {
		pStart := offset
		pEnd := offset + len(p.Text)
		offset = pEnd + 1 // paragraph join separator

		if p.Text == "" {
			continue
		}

		if buf == nil {
			buf = c.seedDraft(paragraphs, i, pStart, "")
			continue
		}

		reason, split := c.boundary(buf, p)
		if !split {
			buf.add(p, pEnd)
			continue
		}

		c.logger.Debug("chunk boundary", "reason", reason, "bufferChars", buf.coreLen, "paragraph", i)
		drafts = append(drafts, buf)
		buf = c.seedDraft(paragraphs, i, pStart, overlapWindow(paragraphs, i, c.policy.OverlapChars))
	}

	if buf != nil {
		drafts = append(drafts, buf)
	}

	drafts = c.mergeUndersized(drafts)
	return c.materialize(drafts)
}

// seedDraft starts a new buffer at paragraph i, optionally prefixed with an
// overlap window from the paragraphs preceding the break.
func (c *Chunker) seedDraft(paragraphs []core.Paragraph, i, pStart int, overlap string) *draft {
	p := paragraphs[i]
	d := &draft{
		parts:     []string{p.Text},
		coreLen:   len(p.Text),
		page:      p.Page,
		paraIndex: i,
		start:     pStart,
		end:       pStart + len(p.Text),
		phase:     detectPhase(p.Text),
	}
	d.rects = append(d.rects, p.Rects...)
	if overlap != "" {
		d.overlap = overlap + "\n"
	}
	return d
}

// splitOversized breaks any paragraph longer than the hard ceiling into
// sentence-aligned pieces of at most MaxChars, so a single run-on paragraph
// cannot seed a chunk past MaxChunkChars. Heading flags, section numbers and
// geometry stay with the opening piece.
func (c *Chunker) splitOversized(paragraphs []core.Paragraph) []core.Paragraph {
	oversized := false
	for _, p := range paragraphs {
		if len(p.Text) > c.policy.MaxChunkChars {
			oversized = true
			break
		}
	}
	if !oversized {
		return paragraphs
	}

	out := make([]core.Paragraph, 0, len(paragraphs))
	for _, p := range paragraphs {
		if len(p.Text) <= c.policy.MaxChunkChars {
			out = append(out, p)
			continue
		}
		pieces := splitText(p.Text, c.policy.MaxChars)
		c.logger.Debug("split oversized paragraph", "chars", len(p.Text), "pieces", len(pieces))
		for j, piece := range pieces {
			q := core.Paragraph{Text: piece, Page: p.Page}
			if j == 0 {
				q.Heading = p.Heading
				q.HeadingLevel = p.HeadingLevel
				q.SectionNumber = p.SectionNumber
				q.Rects = p.Rects
			}
			out = append(out, q)
		}
	}
	return out
}

// splitText cuts text into pieces of at most limit characters, preferring
// sentence ends and falling back to word boundaries inside an overlong
// sentence.
func splitText(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}

	var pieces []string
	for len(text) > limit {
		window := text[:limit]
		cut := sentenceCut(window)
		if cut <= 0 {
			cut = strings.LastIndexAny(window, " \n")
		}
		if cut <= 0 {
			cut = limit
		}
		pieces = append(pieces, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

// sentenceCut returns the position after the last sentence end in the window,
// or -1 when the window holds no complete sentence.
func sentenceCut(window string) int {
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == ' ' {
			switch window[i-1] {
			case '.', '?', '!', ';':
				return i
			}
		}
	}
	return -1
}

var sectionOpenPattern = regexp.MustCompile(`(?i)^(?:(?:article|section|sec\.|§)\s*[0-9]|[0-9]+(?:\.[0-9]+)*[.)]\s)`)

// boundary applies the forced-boundary rules in order. Size rules evaluate
// the candidate (buffer plus paragraph); all others require the buffer to
// have reached a policy-scaled floor first.
func (c *Chunker) boundary(buf *draft, p core.Paragraph) (string, bool) {
	candidate := buf.coreLen + 1 + len(p.Text)
	if candidate > c.policy.MaxChars || candidate > c.policy.MaxChunkChars {
		return "size", true
	}

	bufLen := buf.coreLen

	if p.Heading && bufLen >= c.policy.MinChars {
		return "heading", true
	}

	if ContainsCitation(p.Text) && float64(bufLen) >= 1.5*float64(c.policy.MinChars) {
		return "citation", true
	}

	if c.docType.IsSectioned() && opensNumberedSection(p) && float64(bufLen) >= 0.5*float64(c.policy.MinChars) {
		return "section", true
	}

	if c.docType == core.DocumentTypeCaseLaw && bufLen >= c.policy.MinChars {
		if phase := detectPhase(p.Text); phase != phaseUnknown && buf.phase != phaseUnknown && phase != buf.phase {
			return "phase", true
		}
	}

	if bufLen >= c.policy.MinChars && !c.scorer.Continuous(buf.coreText(), p.Text) {
		return "continuity", true
	}

	return "", false
}

func opensNumberedSection(p core.Paragraph) bool {
	return p.SectionNumber != "" || sectionOpenPattern.MatchString(p.Text)
}

// overlapWindow collects up to limit characters of text preceding the break,
// walking backward from paragraph breakIdx. The window is trimmed to a word
// boundary so chunks never open mid-word.
func overlapWindow(paragraphs []core.Paragraph, breakIdx, limit int) string {
	if limit <= 0 || breakIdx == 0 {
		return ""
	}

	var collected []string
	total := 0
	for j := breakIdx - 1; j >= 0 && total < limit; j-- {
		collected = append([]string{paragraphs[j].Text}, collected...)
		total += len(paragraphs[j].Text) + 1
	}

	joined := strings.Join(collected, "\n")
	if len(joined) <= limit {
		return joined
	}

	suffix := joined[len(joined)-limit:]
	if prev := joined[len(joined)-limit-1]; prev != ' ' && prev != '\n' {
		if idx := strings.IndexAny(suffix, " \n"); idx >= 0 && idx < len(suffix)-1 {
			suffix = suffix[idx+1:]
		}
	}
	return suffix
}

// mergeUndersized runs the single post-pass repair: chunks below MinChars are
// merged forward into their successor, and an undersized final chunk is
// merged backward into its predecessor. The pass runs once and does not
// re-trigger; a merged chunk slightly past MaxChunkChars is accepted.
func (c *Chunker) mergeUndersized(drafts []*draft) []*draft {
	if len(drafts) < 2 {
		return drafts
	}

	out := make([]*draft, 0, len(drafts))
	for i, d := range drafts {
		if d.coreLen < c.policy.MinChars && i < len(drafts)-1 {
			next := drafts[i+1]
			next.parts = append(append([]string{}, d.parts...), next.parts...)
			next.coreLen += d.coreLen + 1
			next.rects = append(append([]core.Rect{}, d.rects...), next.rects...)
			next.overlap = d.overlap
			next.page = d.page
			next.paraIndex = d.paraIndex
			next.start = d.start
			c.logger.Debug("merged undersized chunk forward", "chars", d.coreLen)
			continue
		}
		out = append(out, d)
	}

	if n := len(out); n >= 2 && out[n-1].coreLen < c.policy.MinChars {
		prev, last := out[n-2], out[n-1]
		prev.parts = append(prev.parts, last.parts...)
		prev.coreLen += last.coreLen + 1
		prev.rects = append(prev.rects, last.rects...)
		prev.end = last.end
		out = out[:n-1]
		c.logger.Debug("merged final remainder into predecessor", "chars", last.coreLen)
	}

	for _, d := range out {
		if d.coreLen > c.policy.MaxChunkChars {
			c.logger.Debug("merged chunk exceeds hard ceiling", "chars", d.coreLen, "ceiling", c.policy.MaxChunkChars)
		}
	}

	return out
}

func (c *Chunker) materialize(drafts []*draft) []core.Chunk {
	chunks := make([]core.Chunk, 0, len(drafts))
	for idx, d := range drafts {
		text := d.overlap + d.coreText()
		chunks = append(chunks, core.Chunk{
			Index:          idx,
			Page:           d.page,
			ParagraphIndex: d.paraIndex,
			StartOffset:    d.start,
			EndOffset:      d.end,
			Text:           text,
			Rects:          d.rects,
			Checksum:       core.ChecksumFromText(text),
			Metadata:       c.meta.Extract(text),
		})
	}
	return chunks
}

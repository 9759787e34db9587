package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted types. Numbers use varint encoding,
// strings are length-prefixed, timestamps are stored as Unix microseconds.

// ChecksumMUS serializes Checksum values.
var ChecksumMUS = checksumSer{}

type checksumSer struct{}

func (checksumSer) Marshal(c Checksum, bs []byte) int {
	return varint.Uint64.Marshal(uint64(c), bs)
}

func (checksumSer) Unmarshal(bs []byte) (Checksum, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return Checksum(v), n, err
}

func (checksumSer) Size(c Checksum) int {
	return varint.Uint64.Size(uint64(c))
}

// RectMUS serializes Rect values.
var RectMUS = rectSer{}

type rectSer struct{}

func (rectSer) Marshal(r Rect, bs []byte) (n int) {
	n = varint.Int.Marshal(r.Page, bs)
	n += varint.Float64.Marshal(r.X, bs[n:])
	n += varint.Float64.Marshal(r.Y, bs[n:])
	n += varint.Float64.Marshal(r.Width, bs[n:])
	n += varint.Float64.Marshal(r.Height, bs[n:])
	return n
}

func (rectSer) Unmarshal(bs []byte) (r Rect, n int, err error) {
	var n1 int
	if r.Page, n, err = varint.Int.Unmarshal(bs); err != nil {
		return r, n, err
	}
	if r.X, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if r.Y, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if r.Width, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if r.Height, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	return r, n, nil
}

func (rectSer) Size(r Rect) int {
	return varint.Int.Size(r.Page) +
		varint.Float64.Size(r.X) +
		varint.Float64.Size(r.Y) +
		varint.Float64.Size(r.Width) +
		varint.Float64.Size(r.Height)
}

// stringSliceSer serializes a []string with a varint length prefix.
type stringSliceSer struct{}

func (stringSliceSer) Marshal(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func (stringSliceSer) Unmarshal(bs []byte) (v []string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]string, length)
	var n1 int
	for i := 0; i < length; i++ {
		if v[i], n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n + n1, err
		}
		n += n1
	}
	return v, n, nil
}

func (stringSliceSer) Size(v []string) int {
	size := varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

var stringsMUS = stringSliceSer{}

// ChunkMetadataMUS serializes ChunkMetadata values.
var ChunkMetadataMUS = chunkMetadataSer{}

type chunkMetadataSer struct{}

func (chunkMetadataSer) Marshal(m ChunkMetadata, bs []byte) (n int) {
	n = ord.String.Marshal(m.SectionHeader, bs)
	n += stringsMUS.Marshal(m.CaseCitations, bs[n:])
	n += stringsMUS.Marshal(m.StatuteRefs, bs[n:])
	n += stringsMUS.Marshal(m.ReasoningTags, bs[n:])
	return n
}

func (chunkMetadataSer) Unmarshal(bs []byte) (m ChunkMetadata, n int, err error) {
	var n1 int
	if m.SectionHeader, n, err = ord.String.Unmarshal(bs); err != nil {
		return m, n, err
	}
	if m.CaseCitations, n1, err = stringsMUS.Unmarshal(bs[n:]); err != nil {
		return m, n + n1, err
	}
	n += n1
	if m.StatuteRefs, n1, err = stringsMUS.Unmarshal(bs[n:]); err != nil {
		return m, n + n1, err
	}
	n += n1
	if m.ReasoningTags, n1, err = stringsMUS.Unmarshal(bs[n:]); err != nil {
		return m, n + n1, err
	}
	n += n1
	return m, n, nil
}

func (chunkMetadataSer) Size(m ChunkMetadata) int {
	return ord.String.Size(m.SectionHeader) +
		stringsMUS.Size(m.CaseCitations) +
		stringsMUS.Size(m.StatuteRefs) +
		stringsMUS.Size(m.ReasoningTags)
}

// ChunkMUS serializes Chunk values for storage.
var ChunkMUS = chunkSer{}

type chunkSer struct{}

func (chunkSer) Marshal(c Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.SourceID, bs)
	n += varint.Int.Marshal(c.Index, bs[n:])
	n += varint.Int.Marshal(c.Page, bs[n:])
	n += varint.Int.Marshal(c.ParagraphIndex, bs[n:])
	n += varint.Int.Marshal(c.StartOffset, bs[n:])
	n += varint.Int.Marshal(c.EndOffset, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += varint.Int.Marshal(len(c.Rects), bs[n:])
	for _, r := range c.Rects {
		n += RectMUS.Marshal(r, bs[n:])
	}
	n += ChecksumMUS.Marshal(c.Checksum, bs[n:])
	n += ChunkMetadataMUS.Marshal(c.Metadata, bs[n:])
	n += varint.Int.Marshal(len(c.Vector), bs[n:])
	for _, f := range c.Vector {
		n += varint.Float32.Marshal(f, bs[n:])
	}
	n += varint.Int64.Marshal(c.InsertedAt.UnixMicro(), bs[n:])
	return n
}

func (chunkSer) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var n1 int
	if c.SourceID, n, err = ord.String.Unmarshal(bs); err != nil {
		return c, n, err
	}
	if c.Index, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Page, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.ParagraphIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.StartOffset, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.EndOffset, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1

	var rectCount int
	if rectCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if rectCount > 0 {
		c.Rects = make([]Rect, rectCount)
		for i := 0; i < rectCount; i++ {
			if c.Rects[i], n1, err = RectMUS.Unmarshal(bs[n:]); err != nil {
				return c, n + n1, err
			}
			n += n1
		}
	}

	if c.Checksum, n1, err = ChecksumMUS.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Metadata, n1, err = ChunkMetadataMUS.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1

	var vecLen int
	if vecLen, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if vecLen > 0 {
		c.Vector = make([]float32, vecLen)
		for i := 0; i < vecLen; i++ {
			if c.Vector[i], n1, err = varint.Float32.Unmarshal(bs[n:]); err != nil {
				return c, n + n1, err
			}
			n += n1
		}
	}

	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	c.InsertedAt = time.UnixMicro(micros).UTC()
	return c, n, nil
}

func (chunkSer) Size(c Chunk) int {
	size := ord.String.Size(c.SourceID) +
		varint.Int.Size(c.Index) +
		varint.Int.Size(c.Page) +
		varint.Int.Size(c.ParagraphIndex) +
		varint.Int.Size(c.StartOffset) +
		varint.Int.Size(c.EndOffset) +
		ord.String.Size(c.Text) +
		varint.Int.Size(len(c.Rects))
	for _, r := range c.Rects {
		size += RectMUS.Size(r)
	}
	size += ChecksumMUS.Size(c.Checksum) +
		ChunkMetadataMUS.Size(c.Metadata) +
		varint.Int.Size(len(c.Vector))
	for _, f := range c.Vector {
		size += varint.Float32.Size(f)
	}
	size += varint.Int64.Size(c.InsertedAt.UnixMicro())
	return size
}

// SourceMUS serializes Source values for storage.
var SourceMUS = sourceSer{}

type sourceSer struct{}

func (sourceSer) Marshal(s Source, bs []byte) (n int) {
	n = ord.String.Marshal(s.ID, bs)
	n += ord.String.Marshal(s.Title, bs[n:])
	n += ord.String.Marshal(string(s.Type), bs[n:])
	n += varint.Int.Marshal(s.Pages, bs[n:])
	n += varint.Int.Marshal(s.ChunkCount, bs[n:])
	n += varint.Int.Marshal(int(s.Status), bs[n:])
	n += varint.Int64.Marshal(s.InsertedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(s.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (sourceSer) Unmarshal(bs []byte) (s Source, n int, err error) {
	var n1 int
	if s.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return s, n, err
	}
	if s.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1

	var docType string
	if docType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	s.Type = DocumentType(docType)

	if s.Pages, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	if s.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1

	var status int
	if status, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	s.Status = SourceStatus(status)

	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	s.InsertedAt = time.UnixMicro(micros).UTC()

	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return s, n + n1, err
	}
	n += n1
	s.UpdatedAt = time.UnixMicro(micros).UTC()
	return s, n, nil
}

func (sourceSer) Size(s Source) int {
	return ord.String.Size(s.ID) +
		ord.String.Size(s.Title) +
		ord.String.Size(string(s.Type)) +
		varint.Int.Size(s.Pages) +
		varint.Int.Size(s.ChunkCount) +
		varint.Int.Size(int(s.Status)) +
		varint.Int64.Size(s.InsertedAt.UnixMicro()) +
		varint.Int64.Size(s.UpdatedAt.UnixMicro())
}

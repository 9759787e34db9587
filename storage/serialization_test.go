package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgrove/evidentia/core"
)

func TestChunkRoundTrip(t *testing.T) {
	chunk := &core.Chunk{
		SourceID:       "src-42",
		Index:          7,
		Page:           3,
		ParagraphIndex: 12,
		StartOffset:    4096,
		EndOffset:      5500,
		Text:           "Article 3. The provisions of this treaty shall apply to all member states.",
		Rects: []core.Rect{
			{Page: 3, X: 0.1, Y: 0.25, Width: 0.8, Height: 0.04},
			{Page: 3, X: 0.1, Y: 0.3, Width: 0.75, Height: 0.04},
		},
		Checksum: core.ChecksumFromText("Article 3. The provisions of this treaty shall apply to all member states."),
		Metadata: core.ChunkMetadata{
			SectionHeader: "Article 3",
			CaseCitations: []string{"Smith v. Jones, 410 U.S. 113 (1973)"},
			StatuteRefs:   []string{"§ 1983"},
			ReasoningTags: []string{"rule"},
		},
		Vector:     []float32{0.1, -0.4, 0.9, 0.0},
		InsertedAt: time.Date(2026, 3, 14, 9, 26, 53, 589000, time.UTC),
	}

	data := MarshalChunk(chunk)
	require.NotEmpty(t, data)
	assert.Len(t, data, core.ChunkMUS.Size(*chunk))

	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestChunkRoundTrip_EmptyOptionalFields(t *testing.T) {
	chunk := &core.Chunk{
		SourceID:   "src-1",
		Index:      0,
		Text:       "body",
		Checksum:   core.ChecksumFromText("body"),
		InsertedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)

	assert.Equal(t, chunk.Text, decoded.Text)
	assert.Empty(t, decoded.Rects)
	assert.Empty(t, decoded.Vector)
	assert.Empty(t, decoded.Metadata.CaseCitations)
}

func TestSourceRoundTrip(t *testing.T) {
	source := &core.Source{
		ID:         "b7a3f9d0-2f4e-4c2d-9d6a-1c8a23f0e5b1",
		Title:      "Public Procurement Act 2019",
		Type:       core.DocumentTypeStatute,
		Pages:      48,
		ChunkCount: 120,
		Status:     core.SourceStatusReady,
		InsertedAt: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 1, 2, 15, 9, 0, 0, time.UTC),
	}

	data := MarshalSource(source)
	assert.Len(t, data, core.SourceMUS.Size(*source))

	decoded, err := UnmarshalSource(data)
	require.NoError(t, err)
	assert.Equal(t, source, decoded)
}

func TestUnmarshalChunk_Truncated(t *testing.T) {
	chunk := &core.Chunk{SourceID: "src-1", Text: "body", InsertedAt: time.Now().UTC()}
	data := MarshalChunk(chunk)

	_, err := UnmarshalChunk(data[:2])
	assert.Error(t, err)
}

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/storage"
)

func testSource(title string) *core.Source {
	return &core.Source{
		Title:  title,
		Type:   core.DocumentTypeStatute,
		Pages:  10,
		Status: core.SourceStatusPending,
	}
}

func TestAddSource_AssignsID(t *testing.T) {
	_, sources := newTestRepos(t)
	ctx := context.Background()

	added, err := sources.AddSource(ctx, testSource("Public Procurement Act"))
	require.NoError(t, err)

	assert.NotEmpty(t, added.ID)
	assert.False(t, added.InsertedAt.IsZero())

	got, err := sources.GetSource(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Public Procurement Act", got.Title)
	assert.Equal(t, core.DocumentTypeStatute, got.Type)
}

func TestAddSource_RejectsInvalid(t *testing.T) {
	_, sources := newTestRepos(t)

	_, err := sources.AddSource(context.Background(), &core.Source{
		Title:  "",
		Type:   core.DocumentTypeStatute,
		Status: core.SourceStatusPending,
	})
	assert.ErrorIs(t, err, core.ErrInvalidSource)
}

func TestAddSource_DuplicateID(t *testing.T) {
	_, sources := newTestRepos(t)
	ctx := context.Background()

	src := testSource("Act One")
	src.ID = "fixed-id"
	_, err := sources.AddSource(ctx, src)
	require.NoError(t, err)

	dup := testSource("Act Two")
	dup.ID = "fixed-id"
	_, err = sources.AddSource(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestGetSource_NotFound(t *testing.T) {
	_, sources := newTestRepos(t)

	_, err := sources.GetSource(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateSource(t *testing.T) {
	_, sources := newTestRepos(t)
	ctx := context.Background()

	added, err := sources.AddSource(ctx, testSource("Draft Act"))
	require.NoError(t, err)

	added.Status = core.SourceStatusReady
	added.ChunkCount = 42
	updated, err := sources.UpdateSource(ctx, added)
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.Before(updated.InsertedAt))

	got, err := sources.GetSource(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SourceStatusReady, got.Status)
	assert.Equal(t, 42, got.ChunkCount)
}

func TestUpdateSource_NotFound(t *testing.T) {
	_, sources := newTestRepos(t)

	ghost := testSource("Ghost Act")
	ghost.ID = "never-added"
	_, err := sources.UpdateSource(context.Background(), ghost)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteSource(t *testing.T) {
	_, sources := newTestRepos(t)
	ctx := context.Background()

	added, err := sources.AddSource(ctx, testSource("Repealed Act"))
	require.NoError(t, err)

	require.NoError(t, sources.DeleteSource(ctx, added.ID))

	_, err = sources.GetSource(ctx, added.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, sources.DeleteSource(ctx, added.ID), storage.ErrNotFound)
}

func TestListSources_OrderedByInsertion(t *testing.T) {
	_, sources := newTestRepos(t)
	ctx := context.Background()

	first := testSource("First Act")
	first.InsertedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := testSource("Second Act")
	second.InsertedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Insert newest first to prove ordering comes from timestamps.
	_, err := sources.AddSource(ctx, second)
	require.NoError(t, err)
	_, err = sources.AddSource(ctx, first)
	require.NoError(t, err)

	got, err := sources.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "First Act", got[0].Title)
	assert.Equal(t, "Second Act", got[1].Title)
}

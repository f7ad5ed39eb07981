package processors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoIngest/core"
	"videoIngest/storage"
)

func TestBatchKeepsOrderAndCounts(t *testing.T) {
	dir := t.TempDir()
	sources := []core.Source{
		writeVideo(t, dir, "one.mp4", []byte("video one")),
		writeVideo(t, dir, "two.mp4", []byte("video two")),
		writeVideo(t, dir, "one-copy.mp4", []byte("video one")),
		core.NewFileSource(dir + "/gone.mp4"),
	}
	c := newTestCoordinator(t, Dependencies{
		Transcriber: &fakeTranscriber{segments: helloSegments()},
		Embedder:    &fakeEmbedder{},
		Store:       storage.NewMemoryStore(),
	}, helloOptions())

	res := NewBatchProcessor(c, 1, quietLogger()).Run(context.Background(), sources)

	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Videos, 4)
	for i, v := range res.Videos {
		assert.Equal(t, sources[i].Name(), v.Source)
	}
	assert.Equal(t, core.StateCompleted, res.Videos[0].State)
	assert.Equal(t, core.StateCompleted, res.Videos[1].State)
	assert.Equal(t, core.StateSkipped, res.Videos[2].State)
	assert.Equal(t, core.StateFailed, res.Videos[3].State)

	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 6, res.ChunksProduced)
	assert.Equal(t, 6, res.ChunksStored)
	assert.Zero(t, res.ChunksDup)
}

func TestBatchStoresIdenticalCopiesOnce(t *testing.T) {
	dir := t.TempDir()
	var sources []core.Source
	for i := 0; i < 8; i++ {
		sources = append(sources, writeVideo(t, dir, fmt.Sprintf("copy-%d.mp4", i), []byte("the same lecture")))
	}
	store := storage.NewMemoryStore()
	opts := helloOptions()
	opts.EmbedConcurrency = 2
	c := newTestCoordinator(t, Dependencies{
		Transcriber: &fakeTranscriber{segments: lectureSegments(12)},
		Embedder:    &fakeEmbedder{},
		Store:       store,
	}, opts)

	res := NewBatchProcessor(c, 4, quietLogger()).Run(context.Background(), sources)

	require.Len(t, res.Videos, 8)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 8, res.Completed+res.Skipped)
	require.NotEmpty(t, res.Videos[0].Identity.VideoID)
	rows := store.Chunks(res.Videos[0].Identity.VideoID)
	assert.Equal(t, store.ChunkCount(), len(rows))
	assert.Equal(t, res.ChunksStored, store.ChunkCount(), "every chunk is stored exactly once")

	seen := map[string]bool{}
	for _, row := range rows {
		assert.False(t, seen[row.Chunk.ContentHash])
		seen[row.Chunk.ContentHash] = true
	}
}

type stubIngester struct{}

func (stubIngester) Ingest(ctx context.Context, src core.Source) VideoResult {
	if src.Name() == "bad.mp4" {
		return VideoResult{Source: src.Name(), State: core.StateFailed, Err: errors.New("boom")}
	}
	return VideoResult{Source: src.Name(), State: core.StateCompleted, ChunksProduced: 2, ChunksStored: 2}
}

func TestBatchDefaultsWorkers(t *testing.T) {
	p := NewBatchProcessor(stubIngester{}, 0, quietLogger())
	res := p.Run(context.Background(), []core.Source{core.NewFileSource("a.mp4"), core.NewFileSource("bad.mp4")})
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.ChunksStored)

	empty := p.Run(context.Background(), nil)
	assert.Empty(t, empty.Videos)
	assert.Zero(t, empty.Completed)
}

package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoIngest/config"
	"videoIngest/core"
)

func chunk(videoID string, index int, text string) core.Chunk {
	return core.Chunk{VideoID: videoID, Index: index, Text: text, ContentHash: core.ChunkFingerprint(text)}
}

func TestMemoryStoreChunkUniqueness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inserted, err := s.UpsertChunk(ctx, chunk("v1", 0, "Hello world."), []float32{1, 0})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.UpsertChunk(ctx, chunk("v1", 5, "hello   WORLD."), []float32{0, 1})
	require.NoError(t, err)
	assert.False(t, inserted, "same normalized text in the same video")

	inserted, err = s.UpsertChunk(ctx, chunk("v2", 0, "Hello world."), []float32{1, 0})
	require.NoError(t, err)
	assert.True(t, inserted, "fingerprints are scoped per video")

	ok, err := s.ExistsChunk(ctx, "v1", core.ChunkFingerprint("Hello world."))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ExistsChunk(ctx, "v1", core.ChunkFingerprint("Other."))
	require.NoError(t, err)
	assert.False(t, ok)

	rows := s.Chunks("v1")
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].Chunk.Index)
	assert.Equal(t, []float32{1, 0}, rows[0].Vector)
	assert.Equal(t, 2, s.ChunkCount())
}

func TestMemoryStoreMarkVideoKeepsFirstRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := core.VideoIdentity{VideoID: "video_abc_10", SourceHash: "abc", ByteSize: 10}

	ok, err := s.ExistsVideo(ctx, id.VideoID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkVideo(ctx, id, 3))
	require.NoError(t, s.MarkVideo(ctx, id, 7))

	ok, err = s.ExistsVideo(ctx, id.VideoID)
	require.NoError(t, err)
	assert.True(t, ok)
	rec, ok := s.Video(id.VideoID)
	require.True(t, ok)
	assert.Equal(t, 3, rec.ChunkCount)
	assert.NoError(t, s.Close())
}

func TestMemoryStoreConcurrentInsertsStoreOnce(t *testing.T) {
	s := NewMemoryStore()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				ok, err := s.UpsertChunk(context.Background(), chunk("v", i, fmt.Sprintf("chunk %d", i)), nil)
				if err == nil && ok {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, inserted)
	assert.Equal(t, 20, s.ChunkCount())
}

func TestMemoryStoreRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().UpsertChunk(ctx, chunk("v", 0, "x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	for _, kind := range []string{"", "memory", "MEMORY", "sqlite"} {
		s := NewStore(context.Background(), &config.Config{Store: kind})
		_, ok := s.(*MemoryStore)
		assert.True(t, ok, "store %q", kind)
	}
}

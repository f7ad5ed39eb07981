package processors

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoIngest/core"
)

// countingChecker records lookups and answers from fixed sets.
type countingChecker struct {
	mu         sync.Mutex
	videos     map[string]bool
	chunks     map[string]bool
	videoCalls int
	chunkCalls int
	err        error
}

func newCountingChecker() *countingChecker {
	return &countingChecker{videos: map[string]bool{}, chunks: map[string]bool{}}
}

func (c *countingChecker) ExistsVideo(ctx context.Context, videoID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoCalls++
	if c.err != nil {
		return false, c.err
	}
	return c.videos[videoID], nil
}

func (c *countingChecker) ExistsChunk(ctx context.Context, videoID, contentHash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunkCalls++
	if c.err != nil {
		return false, c.err
	}
	return c.chunks[videoID+"|"+contentHash], nil
}

func testChunk(videoID string, index int, text string) core.Chunk {
	return core.Chunk{VideoID: videoID, Index: index, Text: text, ContentHash: core.ChunkFingerprint(text)}
}

func TestGateMemoizesPositiveAnswers(t *testing.T) {
	checker := newCountingChecker()
	checker.videos["video_a"] = true
	gate, err := NewGate(checker, GateOptions{Logger: quietLogger()})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := gate.VideoProcessed(ctx, "video_a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, checker.videoCalls)

	for i := 0; i < 2; i++ {
		ok, err := gate.VideoProcessed(ctx, "video_b")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 3, checker.videoCalls, "negative answers are not memoized")

	gate.RememberVideo("video_b")
	ok, err := gate.VideoProcessed(ctx, "video_b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, checker.videoCalls)
}

func TestGateAllowReingestSkipsVideoCheckOnly(t *testing.T) {
	checker := newCountingChecker()
	checker.videos["video_a"] = true
	c := testChunk("video_a", 0, "Hello world.")
	checker.chunks["video_a|"+c.ContentHash] = true

	gate, err := NewGate(checker, GateOptions{AllowReingest: true, Logger: quietLogger()})
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := gate.VideoProcessed(ctx, "video_a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, checker.videoCalls)

	ok, err = gate.ChunkExists(ctx, "video_a", c.ContentHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateWrapsCheckerErrors(t *testing.T) {
	checker := newCountingChecker()
	checker.err = errors.New("connection refused")
	gate, err := NewGate(checker, GateOptions{Logger: quietLogger()})
	require.NoError(t, err)

	_, err = gate.VideoProcessed(context.Background(), "video_a")
	require.Error(t, err)
	assert.Equal(t, core.KindExternalCallFailure, core.KindOf(err))

	_, _, err = gate.FilterChunks(context.Background(), []core.Chunk{testChunk("video_a", 0, "x")})
	require.Error(t, err)
	assert.Equal(t, core.KindExternalCallFailure, core.KindOf(err))
}

func TestFilterChunks(t *testing.T) {
	checker := newCountingChecker()
	stored := testChunk("video_a", 1, "Already stored.")
	checker.chunks["video_a|"+stored.ContentHash] = true

	gate, err := NewGate(checker, GateOptions{Concurrency: 2, Logger: quietLogger()})
	require.NoError(t, err)

	chunks := []core.Chunk{
		testChunk("video_a", 0, "Hello world."),
		stored,
		testChunk("video_a", 2, "Something new."),
		testChunk("video_a", 3, "  hello   WORLD. "),
		testChunk("video_a", 4, "Last one."),
	}
	fresh, dup, err := gate.FilterChunks(context.Background(), chunks)
	require.NoError(t, err)

	assert.Equal(t, 2, dup)
	require.Len(t, fresh, 3)
	assert.Equal(t, []int{0, 2, 4}, []int{fresh[0].Index, fresh[1].Index, fresh[2].Index})
	assert.Equal(t, 4, checker.chunkCalls, "within-run duplicates never reach the store")
}

func TestFilterChunksScopesFingerprintsByVideo(t *testing.T) {
	checker := newCountingChecker()
	other := testChunk("video_b", 0, "Shared sentence.")
	checker.chunks["video_b|"+other.ContentHash] = true

	gate, err := NewGate(checker, GateOptions{Logger: quietLogger()})
	require.NoError(t, err)

	fresh, dup, err := gate.FilterChunks(context.Background(), []core.Chunk{testChunk("video_a", 0, "Shared sentence.")})
	require.NoError(t, err)
	assert.Zero(t, dup)
	assert.Len(t, fresh, 1)
}

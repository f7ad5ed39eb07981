package processors

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTranscriptCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcriptions")
	cache, err := NewFileTranscriptCache(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "video_abc_10")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "video_abc_10", helloSegments()))
	segs, ok, err := cache.Get(ctx, "video_abc_10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, helloSegments(), segs)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
	assert.Equal(t, "video_abc_10.json", entries[0].Name())
}

func TestNewFileTranscriptCacheCreatesNestedDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "cache", "transcriptions")
	_, err := NewFileTranscriptCache(dir)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	_, err = NewFileTranscriptCache(filepath.Join(blocker, "sub"))
	assert.Error(t, err, "a file in the path cannot become a directory")
}

func TestFileTranscriptCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileTranscriptCache(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video_x_1.json"), []byte("{not json"), 0o644))

	_, ok, err := cache.Get(context.Background(), "video_x_1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisTranscriptCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisTranscriptCache(client, time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "video_abc_10")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "video_abc_10", helloSegments()))
	assert.True(t, mr.Exists("transcript:video_abc_10"))
	assert.Equal(t, time.Hour, mr.TTL("transcript:video_abc_10"))

	segs, ok, err := cache.Get(ctx, "video_abc_10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, helloSegments(), segs)

	mr.FastForward(2 * time.Hour)
	_, ok, err = cache.Get(ctx, "video_abc_10")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisTranscriptCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, _, err := NewRedisTranscriptCache(client, 0).Get(context.Background(), "video_abc_10")
	assert.Error(t, err)
}

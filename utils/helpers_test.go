package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMediaFile(t *testing.T) {
	for _, name := range []string{"a.mp4", "B.MOV", "dir/c.mkv", "d.webm", "e.m4v", "f.AVI"} {
		assert.True(t, IsMediaFile(name), name)
	}
	for _, name := range []string{"notes.txt", "mp4", "video.mp4.json", ""} {
		assert.False(t, IsMediaFile(name), name)
	}
}

func TestListMediaFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"b.mp4", "a.MKV", "readme.md", "nested/c.mov", "nested/d.srt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := ListMediaFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.MKV"),
		filepath.Join(dir, "b.mp4"),
		filepath.Join(dir, "nested", "c.mov"),
	}, files)

	_, err = ListMediaFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestFormatBytesAndIDs(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))

	a, b := NewID(), NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.True(t, FileExists(t.TempDir()))
	assert.False(t, FileExists(filepath.Join(t.TempDir(), "nope")))
}

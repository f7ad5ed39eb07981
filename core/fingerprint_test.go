package core

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	data []byte
	read int64
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Size(ctx context.Context) (int64, error) { return int64(len(c.data)), nil }

func (c *countingSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(&countingReader{src: c, r: bytes.NewReader(c.data)}), nil
}

type countingReader struct {
	src *countingSource
	r   io.Reader
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.src.read += int64(n)
	return n, err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestIdentifyVideoIgnoresNameAndLocation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := bytes.Repeat([]byte("frame-data-"), 5000)

	a := writeFile(t, dir, "lecture.mp4", data)
	b := writeFile(t, dir, "moved/renamed copy.MOV", data)

	idA, err := IdentifyVideo(ctx, NewFileSource(a), 0)
	require.NoError(t, err)
	idB, err := IdentifyVideo(ctx, NewFileSource(b), 0)
	require.NoError(t, err)

	assert.Equal(t, idA, idB)
	assert.Equal(t, int64(len(data)), idA.ByteSize)
	assert.True(t, strings.HasPrefix(idA.VideoID, "video_"))
	assert.Len(t, strings.Split(idA.VideoID, "_")[1], 12)
	assert.True(t, strings.HasSuffix(idA.VideoID, "_55000"))
}

func TestIdentifyVideoDistinguishesSizeAndPrefix(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	base := bytes.Repeat([]byte{7}, 4096)
	longer := append(append([]byte{}, base...), 1, 2, 3)
	changed := append([]byte{8}, base[1:]...)

	id1, err := IdentifyVideo(ctx, NewFileSource(writeFile(t, dir, "a.bin", base)), 1024)
	require.NoError(t, err)
	id2, err := IdentifyVideo(ctx, NewFileSource(writeFile(t, dir, "b.bin", longer)), 1024)
	require.NoError(t, err)
	id3, err := IdentifyVideo(ctx, NewFileSource(writeFile(t, dir, "c.bin", changed)), 1024)
	require.NoError(t, err)

	// Same prefix, different size.
	assert.Equal(t, id1.SourceHash, id2.SourceHash)
	assert.NotEqual(t, id1.VideoID, id2.VideoID)
	// Same size, different prefix.
	assert.NotEqual(t, id1.VideoID, id3.VideoID)
}

func TestIdentifyVideoReadsBoundedPrefix(t *testing.T) {
	src := &countingSource{data: bytes.Repeat([]byte("x"), 10000)}

	_, err := IdentifyVideo(context.Background(), src, 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, src.read, int64(100+512))
}

func TestIdentifyVideoMissingFile(t *testing.T) {
	_, err := IdentifyVideo(context.Background(), NewFileSource(filepath.Join(t.TempDir(), "nope.mp4")), 0)
	require.Error(t, err)
}

func TestChunkFingerprintNormalization(t *testing.T) {
	base := ChunkFingerprint("Hello world. This is a test.")

	assert.Equal(t, base, ChunkFingerprint("  hello   WORLD.\n\tthis is A test.  "))
	assert.Equal(t, base, ChunkFingerprint("HELLO WORLD. THIS IS A TEST."))
	assert.NotEqual(t, base, ChunkFingerprint("Hello world. This is a test!"))
	assert.Len(t, base, 64)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeText("  A\n\nb \t C "))
	assert.Equal(t, "", NormalizeText(" \n "))
}

func TestNormalizeTextFoldsCase(t *testing.T) {
	// Final sigma and capital sigma fold to the same letter; lower-casing keeps them apart.
	assert.Equal(t, NormalizeText("σας"), NormalizeText("ΣΑΣ"))
	assert.Equal(t, ChunkFingerprint("Οδυσσέας"), ChunkFingerprint("ΟΔΥΣΣΈΑΣ"))
	assert.Equal(t, "strasse", NormalizeText("Straße"))
	assert.Equal(t, ChunkFingerprint("STRASSE"), ChunkFingerprint("straße"))
}

package core

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Source is a readable video input. Name is informational only and never feeds identity.
type Source interface {
	Name() string
	Size(ctx context.Context) (int64, error)
	Open(ctx context.Context) (io.ReadCloser, error)
}

// PrefixOpener is implemented by sources that can fetch only the first n bytes cheaply.
type PrefixOpener interface {
	OpenPrefix(ctx context.Context, n int64) (io.ReadCloser, error)
}

// FileSource is a video on the local filesystem.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: filepath.Clean(path)}
}

func (f *FileSource) Name() string {
	return filepath.Base(f.Path)
}

func (f *FileSource) Size(ctx context.Context) (int64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", f.Path)
	}
	if info.IsDir() {
		return 0, errors.Errorf("%s is a directory", f.Path)
	}
	return info.Size(), nil
}

func (f *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", f.Path)
	}
	return file, nil
}

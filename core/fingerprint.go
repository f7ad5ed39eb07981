package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
)

// DefaultIdentityPrefixBytes bounds how much of a source is hashed for its identity.
const DefaultIdentityPrefixBytes int64 = 1024 * 1024

// IdentifyVideo derives a content-based identity from the first prefixBytes of src and its exact size.
// The result never depends on the source name or location. Prefix plus size is practically unique,
// not cryptographically unique.
func IdentifyVideo(ctx context.Context, src Source, prefixBytes int64) (VideoIdentity, error) {
	if prefixBytes <= 0 {
		prefixBytes = DefaultIdentityPrefixBytes
	}

	size, err := src.Size(ctx)
	if err != nil {
		return VideoIdentity{}, errors.Wrap(err, "read source size")
	}

	var rc io.ReadCloser
	if po, ok := src.(PrefixOpener); ok {
		rc, err = po.OpenPrefix(ctx, prefixBytes)
	} else {
		rc, err = src.Open(ctx)
	}
	if err != nil {
		return VideoIdentity{}, errors.Wrap(err, "open source")
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(rc, prefixBytes)); err != nil {
		return VideoIdentity{}, errors.Wrap(err, "hash source prefix")
	}
	sum := hex.EncodeToString(h.Sum(nil))

	return VideoIdentity{
		VideoID:    fmt.Sprintf("video_%s_%d", sum[:12], size),
		SourceHash: sum,
		ByteSize:   size,
	}, nil
}

// NormalizeText case-folds text, collapses whitespace runs to one space and trims the ends.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(cases.Fold().String(text)), " ")
}

// ChunkFingerprint hashes the normalized chunk text. It ignores chunk index, boundaries and
// chunking parameters.
func ChunkFingerprint(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

package processors

import (
	"context"
	"log"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"videoIngest/core"
)

// DefaultMemoSize bounds the gate's in-process memo of known ids.
const DefaultMemoSize = 10000

// ExistenceChecker answers point lookups against the persistent store.
type ExistenceChecker interface {
	ExistsVideo(ctx context.Context, videoID string) (bool, error)
	ExistsChunk(ctx context.Context, videoID, contentHash string) (bool, error)
}

// Gate short-circuits work that the store already holds. It is only a fast path; the store's
// uniqueness constraints decide what is actually written.
type Gate struct {
	checker       ExistenceChecker
	memo          *lru.Cache[string, struct{}]
	allowReingest bool
	retry         core.RetryPolicy
	concurrency   int
	logger        *log.Logger
}

// GateOptions configures a Gate.
type GateOptions struct {
	MemoSize      int
	AllowReingest bool
	Retry         core.RetryPolicy
	Concurrency   int
	Logger        *log.Logger
}

func NewGate(checker ExistenceChecker, opts GateOptions) (*Gate, error) {
	if opts.MemoSize <= 0 {
		opts.MemoSize = DefaultMemoSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = core.NoRetry()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[DEDUP] ", log.LstdFlags)
	}
	memo, err := lru.New[string, struct{}](opts.MemoSize)
	if err != nil {
		return nil, err
	}
	return &Gate{
		checker:       checker,
		memo:          memo,
		allowReingest: opts.AllowReingest,
		retry:         opts.Retry,
		concurrency:   opts.Concurrency,
		logger:        opts.Logger,
	}, nil
}

func videoKey(videoID string) string {
	return "v|" + videoID
}

func chunkKey(videoID, contentHash string) string {
	return "c|" + videoID + "|" + contentHash
}

// VideoProcessed reports whether videoID has been completely ingested before.
// It always reports false when reingestion is allowed.
func (g *Gate) VideoProcessed(ctx context.Context, videoID string) (bool, error) {
	if g.allowReingest {
		return false, nil
	}
	if g.memo.Contains(videoKey(videoID)) {
		return true, nil
	}
	var exists bool
	err := core.Retry(ctx, g.retry, "exists video", g.logger, func(ctx context.Context) error {
		var err error
		exists, err = g.checker.ExistsVideo(ctx, videoID)
		return err
	})
	if err != nil {
		return false, core.ExternalFailure("exists video", err)
	}
	if exists {
		g.memo.Add(videoKey(videoID), struct{}{})
	}
	return exists, nil
}

// ChunkExists reports whether (videoID, contentHash) is already stored.
func (g *Gate) ChunkExists(ctx context.Context, videoID, contentHash string) (bool, error) {
	if g.memo.Contains(chunkKey(videoID, contentHash)) {
		return true, nil
	}
	var exists bool
	err := core.Retry(ctx, g.retry, "exists chunk", g.logger, func(ctx context.Context) error {
		var err error
		exists, err = g.checker.ExistsChunk(ctx, videoID, contentHash)
		return err
	})
	if err != nil {
		return false, core.ExternalFailure("exists chunk", err)
	}
	if exists {
		g.memo.Add(chunkKey(videoID, contentHash), struct{}{})
	}
	return exists, nil
}

// RememberVideo records a completed video.
func (g *Gate) RememberVideo(videoID string) {
	g.memo.Add(videoKey(videoID), struct{}{})
}

// RememberChunk records a stored chunk.
func (g *Gate) RememberChunk(videoID, contentHash string) {
	g.memo.Add(chunkKey(videoID, contentHash), struct{}{})
}

// FilterChunks drops chunks whose fingerprint repeats earlier in the slice or is already stored.
// Chunks are checked independently. The returned chunks keep their order and indices.
func (g *Gate) FilterChunks(ctx context.Context, chunks []core.Chunk) (fresh []core.Chunk, duplicates int, err error) {
	seen := make(map[string]bool, len(chunks))
	candidates := make([]int, 0, len(chunks))
	for i, c := range chunks {
		if seen[c.ContentHash] {
			duplicates++
			continue
		}
		seen[c.ContentHash] = true
		candidates = append(candidates, i)
	}

	exists := make([]bool, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for j, idx := range candidates {
		j, c := j, chunks[idx]
		eg.Go(func() error {
			ok, err := g.ChunkExists(egCtx, c.VideoID, c.ContentHash)
			if err != nil {
				return err
			}
			exists[j] = ok
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	fresh = make([]core.Chunk, 0, len(candidates))
	for j, idx := range candidates {
		if exists[j] {
			duplicates++
			continue
		}
		fresh = append(fresh, chunks[idx])
	}
	return fresh, duplicates, nil
}

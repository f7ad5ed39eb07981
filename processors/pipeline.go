package processors

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"videoIngest/config"
	"videoIngest/core"
	"videoIngest/storage"
)

// DefaultEmbeddingBatchSize is the number of chunk texts sent per embedding call.
const DefaultEmbeddingBatchSize = 100

// VideoResult is the outcome of one ingestion.
type VideoResult struct {
	Source         string             `json:"source"`
	Identity       core.VideoIdentity `json:"identity"`
	State          core.VideoState    `json:"state"`
	SkipReason     core.SkipReason    `json:"skip_reason,omitempty"`
	FailedAt       core.VideoState    `json:"failed_at,omitempty"`
	ErrorKind      core.ErrorKind     `json:"error_kind,omitempty"`
	Err            error              `json:"-"`
	ChunksProduced int                `json:"chunks_produced"`
	ChunksDup      int                `json:"chunks_duplicate"`
	ChunksStored   int                `json:"chunks_stored"`
	Stats          ChunkStatistics    `json:"stats"`
	Duration       time.Duration      `json:"duration"`
}

// Succeeded reports whether the video ended Completed or Skipped.
func (r VideoResult) Succeeded() bool {
	return r.State == core.StateCompleted || r.State == core.StateSkipped
}

// Dependencies are the collaborators of a Coordinator. Cache, Tokens and Metrics may be nil.
type Dependencies struct {
	Transcriber Transcriber
	Embedder    storage.Embedder
	Store       storage.Store
	Cache       TranscriptCache
	Tokens      TokenCounter
	Metrics     *core.Metrics
	Logger      *log.Logger
}

// Options tunes a Coordinator.
type Options struct {
	Chunking            config.ChunkingConfig
	EmbeddingBatchSize  int
	EmbedConcurrency    int
	IdentityPrefixBytes int64
	AllowReingest       bool
	Retry               core.RetryPolicy
	MemoSize            int
}

// OptionsFromConfig maps the loaded configuration onto coordinator options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Chunking:            cfg.Chunking,
		EmbeddingBatchSize:  cfg.EmbeddingBatchSize,
		EmbedConcurrency:    cfg.EmbedConcurrency,
		IdentityPrefixBytes: cfg.IdentityPrefixBytes,
		AllowReingest:       cfg.AllowReingest,
		Retry:               cfg.RetryPolicy(),
	}
}

// Coordinator runs fingerprinting, deduplication, transcription, chunking, timestamp
// reconciliation, embedding and storage for one video at a time. It is safe for concurrent use.
type Coordinator struct {
	deps       Dependencies
	opts       Options
	chunker    Chunker
	gate       *Gate
	reconciler *Reconciler
	logger     *log.Logger
}

// NewCoordinator validates the chunking configuration before any work happens.
func NewCoordinator(deps Dependencies, opts Options) (*Coordinator, error) {
	if deps.Transcriber == nil || deps.Embedder == nil || deps.Store == nil {
		return nil, core.InvalidConfig("new coordinator", "transcriber, embedder and store are required")
	}
	chunker, err := NewChunker(opts.Chunking)
	if err != nil {
		return nil, err
	}
	if opts.EmbeddingBatchSize <= 0 {
		opts.EmbeddingBatchSize = DefaultEmbeddingBatchSize
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 1
	}
	if opts.IdentityPrefixBytes <= 0 {
		opts.IdentityPrefixBytes = core.DefaultIdentityPrefixBytes
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = core.NoRetry()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[INGEST] ", log.LstdFlags)
	}

	gate, err := NewGate(deps.Store, GateOptions{
		MemoSize:      opts.MemoSize,
		AllowReingest: opts.AllowReingest,
		Retry:         opts.Retry,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		deps:       deps,
		opts:       opts,
		chunker:    chunker,
		gate:       gate,
		reconciler: NewReconciler(logger),
		logger:     logger,
	}, nil
}

// run carries the per-video state through the stages.
type run struct {
	c       *Coordinator
	src     core.Source
	sm      *core.StateMachine
	result  VideoResult
	started time.Time
	stage   time.Time
}

func (r *run) advance(to core.VideoState) error {
	from := r.sm.Current()
	if err := r.sm.Transition(to); err != nil {
		return err
	}
	now := time.Now()
	r.c.deps.Metrics.ObserveStage(from, now.Sub(r.stage).Seconds())
	r.stage = now
	return nil
}

func (r *run) fail(err error) VideoResult {
	if transErr := r.sm.Transition(core.StateFailed); transErr != nil {
		r.c.logger.Printf("Warning: %v", transErr)
	}
	r.result.State = core.StateFailed
	r.result.FailedAt = r.sm.FailedAt()
	r.result.ErrorKind = core.KindOf(err)
	r.result.Err = err
	r.c.logger.Printf("Video %s (%s) failed during %s: %v", r.result.Identity.VideoID, r.src.Name(), r.result.FailedAt, err)
	return r.finish()
}

func (r *run) finish() VideoResult {
	r.result.Duration = time.Since(r.started)
	r.c.deps.Metrics.VideoOutcome(string(r.result.State))
	r.c.deps.Metrics.Chunks("produced", r.result.ChunksProduced)
	r.c.deps.Metrics.Chunks("duplicate", r.result.ChunksDup)
	r.c.deps.Metrics.Chunks("stored", r.result.ChunksStored)
	return r.result
}

// Ingest processes one video. It never panics on collaborator failures; every outcome is reported
// in the returned result.
func (c *Coordinator) Ingest(ctx context.Context, src core.Source) VideoResult {
	now := time.Now()
	r := &run{c: c, src: src, sm: core.NewStateMachine(), started: now, stage: now}
	r.result.Source = src.Name()
	r.result.State = core.StateReceived

	identity, err := core.IdentifyVideo(ctx, src, c.opts.IdentityPrefixBytes)
	if err != nil {
		return r.fail(core.ExternalFailure("identify video", err))
	}
	r.result.Identity = identity
	if err := r.advance(core.StateFingerprintComputed); err != nil {
		return r.fail(err)
	}

	processed, err := c.gate.VideoProcessed(ctx, identity.VideoID)
	if err != nil {
		return r.fail(err)
	}
	if processed {
		if err := r.advance(core.StateSkipped); err != nil {
			return r.fail(err)
		}
		r.result.State = core.StateSkipped
		r.result.SkipReason = core.SkipAlreadyProcessed
		c.logger.Printf("Skipping %s: %s already processed", src.Name(), identity.VideoID)
		return r.finish()
	}

	if err := r.advance(core.StateChunking); err != nil {
		return r.fail(err)
	}
	segments, err := c.transcribe(ctx, src, identity.VideoID)
	if err != nil {
		return r.fail(err)
	}
	segments = DropInvalidSegments(segments, c.logger)

	transcript := NewTranscript(segments)
	spans, err := c.chunker.Split(transcript)
	if err != nil {
		return r.fail(err)
	}
	chunks := BuildChunks(transcript, spans, identity.VideoID, c.opts.Chunking, c.deps.Tokens)
	r.result.ChunksProduced = len(chunks)

	c.reconciler.Assign(transcript, chunks)
	r.result.Stats = ComputeChunkStatistics(chunks)
	if err := r.advance(core.StateTimestampsAssigned); err != nil {
		return r.fail(err)
	}

	fresh, dup, err := c.gate.FilterChunks(ctx, chunks)
	if err != nil {
		return r.fail(err)
	}
	r.result.ChunksDup = dup

	if err := r.advance(core.StateEmbedding); err != nil {
		return r.fail(err)
	}
	stored, raced, err := c.embedAndStore(ctx, fresh)
	r.result.ChunksStored = stored
	r.result.ChunksDup += raced
	if err != nil {
		return r.fail(err)
	}

	if err := r.advance(core.StateStored); err != nil {
		return r.fail(err)
	}
	err = core.Retry(ctx, c.opts.Retry, "mark video", c.logger, func(ctx context.Context) error {
		return c.deps.Store.MarkVideo(ctx, identity, len(chunks))
	})
	if err != nil {
		return r.fail(core.ExternalFailure("mark video", err))
	}
	c.gate.RememberVideo(identity.VideoID)

	if err := r.advance(core.StateCompleted); err != nil {
		return r.fail(err)
	}
	r.result.State = core.StateCompleted
	c.logger.Printf("Completed %s (%s): %d chunks, %d duplicate, %d stored",
		src.Name(), identity.VideoID, r.result.ChunksProduced, r.result.ChunksDup, r.result.ChunksStored)
	return r.finish()
}

// transcribe returns cached segments when present, otherwise calls the transcriber and caches the
// result. Cache failures only log.
func (c *Coordinator) transcribe(ctx context.Context, src core.Source, videoID string) ([]core.Segment, error) {
	if c.deps.Cache != nil {
		segs, ok, err := c.deps.Cache.Get(ctx, videoID)
		if err != nil {
			c.logger.Printf("Warning: transcript cache read for %s failed: %v", videoID, err)
		} else if ok {
			c.logger.Printf("Using cached transcript for %s (%d segments)", videoID, len(segs))
			return segs, nil
		}
	}

	var segs []core.Segment
	err := core.Retry(ctx, c.opts.Retry, "transcribe", c.logger, func(ctx context.Context) error {
		var err error
		segs, err = c.deps.Transcriber.Transcribe(ctx, src)
		return err
	})
	if err != nil {
		return nil, core.ExternalFailure("transcribe", err)
	}

	if c.deps.Cache != nil {
		if err := c.deps.Cache.Put(ctx, videoID, segs); err != nil {
			c.logger.Printf("Warning: transcript cache write for %s failed: %v", videoID, err)
		}
	}
	return segs, nil
}

// embedAndStore embeds chunks in fixed-size batches with bounded concurrency, then stores them in
// index order. When a batch fails, every earlier batch is still stored before the error is
// returned. raced counts chunks another writer stored first.
func (c *Coordinator) embedAndStore(ctx context.Context, chunks []core.Chunk) (stored, raced int, err error) {
	if len(chunks) == 0 {
		return 0, 0, nil
	}
	size := c.opts.EmbeddingBatchSize
	nBatches := (len(chunks) + size - 1) / size
	vectors := make([][][]float32, nBatches)
	batchErrs := make([]error, nBatches)

	var eg errgroup.Group
	eg.SetLimit(c.opts.EmbedConcurrency)
	var mu sync.Mutex
	for b := 0; b < nBatches; b++ {
		b := b
		lo, hi := b*size, (b+1)*size
		if hi > len(chunks) {
			hi = len(chunks)
		}
		eg.Go(func() error {
			texts := make([]string, 0, hi-lo)
			for _, ch := range chunks[lo:hi] {
				texts = append(texts, ch.Text)
			}
			vecs, err := c.deps.Embedder.Embed(ctx, texts)
			if err == nil && len(vecs) != len(texts) {
				err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batchErrs[b] = core.ExternalFailure(fmt.Sprintf("embed batch %d", b), err)
				c.deps.Metrics.EmbedBatch("failed")
				return nil
			}
			vectors[b] = vecs
			c.deps.Metrics.EmbedBatch("ok")
			return nil
		})
	}
	// Workers record failures in batchErrs and always return nil.
	_ = eg.Wait()

	for b := 0; b < nBatches; b++ {
		if batchErrs[b] != nil {
			return stored, raced, batchErrs[b]
		}
		lo := b * size
		for i, vec := range vectors[b] {
			ch := chunks[lo+i]
			var inserted bool
			err := core.Retry(ctx, c.opts.Retry, "upsert chunk", c.logger, func(ctx context.Context) error {
				var err error
				inserted, err = c.deps.Store.UpsertChunk(ctx, ch, vec)
				return err
			})
			if err != nil {
				return stored, raced, core.ExternalFailure(fmt.Sprintf("store chunk %d", ch.Index), errors.WithStack(err))
			}
			if inserted {
				stored++
			} else {
				raced++
			}
			c.gate.RememberChunk(ch.VideoID, ch.ContentHash)
		}
	}
	return stored, raced, nil
}

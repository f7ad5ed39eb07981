package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"videoIngest/config"
	"videoIngest/core"
	"videoIngest/processors"
	"videoIngest/storage"
	"videoIngest/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config file first, then environment overrides.
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		config.PrintConfigInstructions()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid config: %v", err)
		config.PrintConfigInstructions()
		os.Exit(1)
	}
	if !cfg.HasValidAPI() {
		log.Printf("Warning: api_key or base_url missing, embeddings cannot be created")
		config.PrintConfigInstructions()
		os.Exit(1)
	}
	log.Printf("Chunking: strategy=%s max_chunk_size=%d overlap=%d",
		cfg.Chunking.Strategy, cfg.Chunking.MaxChunkSize, cfg.Chunking.Overlap)

	store := storage.NewStore(ctx, cfg)
	defer store.Close()

	if storage.IsVolcengineModel(cfg.EmbeddingModel) {
		log.Printf("Using Volcengine embedding model %s, vectors reduced to %d dimensions", cfg.EmbeddingModel, cfg.EmbeddingDimension)
	}
	embedder := storage.NewResilientEmbedder(
		storage.NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimension),
		storage.ResilienceConfig{
			RequestsPerSecond: cfg.EmbedRatePerSec,
			Burst:             cfg.EmbedConcurrency,
			Retry:             cfg.RetryPolicy(),
		},
	)

	var transcriber processors.Transcriber
	if cfg.SegmentsDir != "" {
		log.Printf("Reading precomputed segments from %s", cfg.SegmentsDir)
		transcriber = processors.JSONTranscriber{Dir: cfg.SegmentsDir}
	} else {
		transcriber = processors.NewWhisperTranscriber(cfg.APIKey, cfg.BaseURL, cfg.TranscriptionModel, cfg.TranscriptionLanguage)
	}

	cache, err := newTranscriptCache(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init transcript cache: %v", err)
	}

	var tokens processors.TokenCounter
	if cfg.TokenizerPath != "" {
		tc, err := processors.LoadTokenCounter(cfg.TokenizerPath)
		if err != nil {
			log.Printf("Warning: %v, token counts disabled", err)
		} else {
			tokens = tc
		}
	}

	registry := prometheus.NewRegistry()
	metrics, err := core.NewMetrics(registry)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	coordinator, err := processors.NewCoordinator(processors.Dependencies{
		Transcriber: transcriber,
		Embedder:    embedder,
		Store:       store,
		Cache:       cache,
		Tokens:      tokens,
		Metrics:     metrics,
	}, processors.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatalf("failed to create coordinator: %v", err)
	}

	sources, err := discoverSources(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to discover videos: %v", err)
	}
	if len(sources) == 0 {
		log.Printf("No videos found")
		return
	}

	result := processors.NewBatchProcessor(coordinator, cfg.MaxWorkers, nil).Run(ctx, sources)
	for _, v := range result.Videos {
		switch v.State {
		case core.StateFailed:
			log.Printf("FAILED %s at %s (%s): %v", v.Source, v.FailedAt, v.ErrorKind, v.Err)
		case core.StateSkipped:
			log.Printf("SKIPPED %s (%s): %s", v.Source, v.Identity.VideoID, v.SkipReason)
		default:
			log.Printf("OK %s (%s, %s): %d chunks, %d duplicate, %d stored, avg %.0f chars, %s",
				v.Source, v.Identity.VideoID, utils.FormatBytes(v.Identity.ByteSize),
				v.ChunksProduced, v.ChunksDup, v.ChunksStored, v.Stats.AverageSize, v.Duration.Round(time.Millisecond))
		}
	}
	log.Printf("Embedding circuit breaker: %s", embedder.BreakerState())

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, registry); err != nil {
			log.Printf("Warning: failed to write metrics to %s: %v", cfg.MetricsTextfile, err)
		}
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}

// newTranscriptCache prefers Redis when redis_addr is set and reachable.
func newTranscriptCache(ctx context.Context, cfg *config.Config) (processors.TranscriptCache, error) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		err := client.Ping(ctx).Err()
		if err == nil {
			log.Printf("Transcript cache: redis %s", cfg.RedisAddr)
			return processors.NewRedisTranscriptCache(client, 0), nil
		}
		log.Printf("Warning: redis %s unavailable (%v), using file cache", cfg.RedisAddr, err)
		client.Close()
	}
	log.Printf("Transcript cache: %s", cfg.TranscriptCacheDir)
	return processors.NewFileTranscriptCache(cfg.TranscriptCacheDir)
}

func discoverSources(ctx context.Context, cfg *config.Config) ([]core.Source, error) {
	var sources []core.Source
	if cfg.S3Bucket != "" {
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		objs, err := storage.ListS3Sources(ctx, client, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		for _, o := range objs {
			sources = append(sources, o)
		}
		log.Printf("Found %d videos in s3://%s/%s", len(sources), cfg.S3Bucket, cfg.S3Prefix)
		return sources, nil
	}

	files, err := utils.ListMediaFiles(cfg.InputDir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		sources = append(sources, core.NewFileSource(f))
	}
	log.Printf("Found %d videos in %s", len(sources), cfg.InputDir)
	return sources, nil
}

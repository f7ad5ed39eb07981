package processors

import (
	"context"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"videoIngest/core"
	"videoIngest/utils"
)

// Ingester processes a single video.
type Ingester interface {
	Ingest(ctx context.Context, src core.Source) VideoResult
}

// BatchResult reports every video of a run plus aggregate counters.
type BatchResult struct {
	RunID          string        `json:"run_id"`
	Videos         []VideoResult `json:"videos"`
	Completed      int           `json:"completed"`
	Skipped        int           `json:"skipped"`
	Failed         int           `json:"failed"`
	ChunksProduced int           `json:"chunks_produced"`
	ChunksDup      int           `json:"chunks_duplicate"`
	ChunksStored   int           `json:"chunks_stored"`
	Duration       time.Duration `json:"duration"`
}

// Add folds one video result into the aggregates.
func (b *BatchResult) Add(r VideoResult) {
	b.Videos = append(b.Videos, r)
	switch r.State {
	case core.StateCompleted:
		b.Completed++
	case core.StateSkipped:
		b.Skipped++
	default:
		b.Failed++
	}
	b.ChunksProduced += r.ChunksProduced
	b.ChunksDup += r.ChunksDup
	b.ChunksStored += r.ChunksStored
}

// BatchProcessor runs an Ingester over many sources with a bounded worker pool.
type BatchProcessor struct {
	ingester   Ingester
	maxWorkers int
	logger     *log.Logger
}

func NewBatchProcessor(ingester Ingester, maxWorkers int, logger *log.Logger) *BatchProcessor {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[INGEST] ", log.LstdFlags)
	}
	return &BatchProcessor{ingester: ingester, maxWorkers: maxWorkers, logger: logger}
}

// Run ingests every source. Results keep the input order; a failed video never stops the others.
func (p *BatchProcessor) Run(ctx context.Context, sources []core.Source) BatchResult {
	start := time.Now()
	runID := utils.NewID()
	p.logger.Printf("Run %s: processing %d videos with %d workers", runID, len(sources), p.maxWorkers)

	results := make([]VideoResult, len(sources))
	var eg errgroup.Group
	eg.SetLimit(p.maxWorkers)
	for i, src := range sources {
		i, src := i, src
		eg.Go(func() error {
			results[i] = p.ingester.Ingest(ctx, src)
			return nil
		})
	}
	// Failures are carried in each VideoResult; workers always return nil.
	_ = eg.Wait()

	batch := BatchResult{RunID: runID}
	for _, r := range results {
		batch.Add(r)
	}
	batch.Duration = time.Since(start)
	p.logger.Printf("Run %s finished in %s: %d completed, %d skipped, %d failed, %d chunks stored",
		runID, batch.Duration.Round(time.Millisecond), batch.Completed, batch.Skipped, batch.Failed, batch.ChunksStored)
	return batch
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"videoIngest/core"
)

// ---------------- PgVector implementation ----------------

// PgVectorStore keeps chunks in Postgres with the pgvector extension. The videos table is the
// completion marker; video_chunks is unique on (video_id, content_hash).
type PgVectorStore struct {
	pool   *pgxpool.Pool
	dim    int
	logger *log.Logger
}

func NewPgVectorStore(ctx context.Context, dbURL string, dim int) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{
		pool:   pool,
		dim:    dim,
		logger: log.New(os.Stdout, "[STORE] ", log.LstdFlags),
	}
	if err := s.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureTables(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	videosQuery := `
		CREATE TABLE IF NOT EXISTS videos (
			video_id VARCHAR(255) PRIMARY KEY,
			source_hash VARCHAR(64) NOT NULL,
			byte_size BIGINT NOT NULL,
			chunk_count INT NOT NULL,
			completed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.pool.Exec(ctx, videosQuery); err != nil {
		return fmt.Errorf("failed to create videos table: %w", err)
	}

	chunksQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS video_chunks (
			id BIGSERIAL PRIMARY KEY,
			video_id VARCHAR(255) NOT NULL,
			content_hash VARCHAR(64) NOT NULL,
			chunk_index INT NOT NULL,
			chunk_text TEXT NOT NULL,
			char_start INT NOT NULL,
			char_end INT NOT NULL,
			start_time DOUBLE PRECISION NOT NULL,
			end_time DOUBLE PRECISION NOT NULL,
			metadata JSONB,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(video_id, content_hash)
		);
	`, s.dim)
	if _, err := s.pool.Exec(ctx, chunksQuery); err != nil {
		return fmt.Errorf("failed to create video_chunks table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_video_chunks_video_id ON video_chunks(video_id);",
		"CREATE INDEX IF NOT EXISTS idx_video_chunks_embedding ON video_chunks USING hnsw (embedding vector_cosine_ops);",
	}
	for _, q := range indexes {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			s.logger.Printf("Warning: failed to create index: %v", err)
		}
	}
	return nil
}

func (s *PgVectorStore) ExistsVideo(ctx context.Context, videoID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM videos WHERE video_id = $1)", videoID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "query videos")
	}
	return exists, nil
}

func (s *PgVectorStore) ExistsChunk(ctx context.Context, videoID, contentHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM video_chunks WHERE video_id = $1 AND content_hash = $2)",
		videoID, contentHash).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "query video_chunks")
	}
	return exists, nil
}

func (s *PgVectorStore) UpsertChunk(ctx context.Context, chunk core.Chunk, vector []float32) (bool, error) {
	meta, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return false, errors.Wrap(err, "encode chunk metadata")
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO video_chunks (video_id, content_hash, chunk_index, chunk_text, char_start, char_end,
			start_time, end_time, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
		ON CONFLICT (video_id, content_hash) DO NOTHING
	`, chunk.VideoID, chunk.ContentHash, chunk.Index, chunk.Text, chunk.CharStart, chunk.CharEnd,
		chunk.StartTS, chunk.EndTS, string(meta), pgvector.NewVector(vector))
	if err != nil {
		return false, errors.Wrapf(err, "insert chunk %d of %s", chunk.Index, chunk.VideoID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgVectorStore) MarkVideo(ctx context.Context, id core.VideoIdentity, chunkCount int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO videos (video_id, source_hash, byte_size, chunk_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (video_id) DO NOTHING
	`, id.VideoID, id.SourceHash, id.ByteSize, chunkCount)
	if err != nil {
		return errors.Wrapf(err, "mark video %s", id.VideoID)
	}
	return nil
}

func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

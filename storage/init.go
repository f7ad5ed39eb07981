package storage

import (
	"context"
	"log"
	"os"
	"strings"

	"videoIngest/config"
)

// NewStore opens the store selected by cfg.Store. A backend that cannot be reached falls back to
// the in-memory store with a warning.
func NewStore(ctx context.Context, cfg *config.Config) Store {
	logger := log.New(os.Stdout, "[STORE] ", log.LstdFlags)

	kind := strings.ToLower(strings.TrimSpace(cfg.Store))
	var (
		s   Store
		err error
	)
	switch kind {
	case "pgvector":
		s, err = NewPgVectorStore(ctx, cfg.PostgresURL, cfg.EmbeddingDimension)
	case "milvus":
		s, err = NewMilvusStore(ctx, cfg.MilvusAddr, cfg.MilvusCollection, cfg.EmbeddingDimension)
	case "cassandra":
		s, err = NewCassandraStore(ctx, cfg.CassandraHosts, cfg.CassandraKeyspace)
	case "memory", "":
		logger.Printf("Using in-memory store")
		return NewMemoryStore()
	default:
		logger.Printf("Warning: unknown store %q, using memory store", cfg.Store)
		return NewMemoryStore()
	}
	if err != nil {
		logger.Printf("Warning: Failed to initialize %s store (%v), falling back to memory store", kind, err)
		return NewMemoryStore()
	}
	logger.Printf("Using %s store", kind)
	return s
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/pkg/errors"

	"videoIngest/core"
)

// ---------------- Milvus implementation ----------------

const (
	milvusKindChunk = "chunk"
	milvusKindVideo = "video"
)

// MilvusStore keeps chunks and completion markers in one collection keyed by a VarChar primary key
// derived from (video_id, content_hash). Upsert on that key never creates a second row for the same
// identity. Milvus has no insert-if-absent, so the inserted flag comes from a strong-consistency
// query before the upsert.
type MilvusStore struct {
	mc     client.Client
	coll   string
	dim    int
	logger *log.Logger
}

func NewMilvusStore(ctx context.Context, addr, coll string, dim int) (*MilvusStore, error) {
	if addr == "" {
		addr = "localhost:19530"
	}
	if coll == "" {
		coll = "video_chunks"
	}
	mc, err := client.NewClient(ctx, client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusStore{mc: mc, coll: coll, dim: dim, logger: log.New(os.Stdout, "[STORE] ", log.LstdFlags)}
	if err := s.ensureSchemaAndIndex(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema().WithName(s.coll).WithDescription("video transcript chunks")
		schema.WithField(entity.NewField().WithName("chunk_key").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
		schema.WithField(entity.NewField().WithName("kind").WithDataType(entity.FieldTypeVarChar).WithMaxLength(16))
		schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
		schema.WithField(entity.NewField().WithName("content_hash").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("chunk_index").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("chunk_text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535))
		schema.WithField(entity.NewField().WithName("start_time").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("end_time").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("metadata").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		s.logger.Printf("Created Milvus collection %s (dim %d)", s.coll, s.dim)
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func milvusChunkKey(videoID, contentHash string) string {
	return milvusKindChunk + "|" + videoID + "|" + contentHash
}

func milvusVideoKey(videoID string) string {
	return milvusKindVideo + "|" + videoID
}

func (s *MilvusStore) exists(ctx context.Context, key string) (bool, error) {
	rs, err := s.mc.Query(ctx, s.coll, nil, fmt.Sprintf("chunk_key == %q", key), []string{"chunk_key"},
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return false, errors.Wrap(err, "milvus query")
	}
	col := rs.GetColumn("chunk_key")
	return col != nil && col.Len() > 0, nil
}

func (s *MilvusStore) ExistsVideo(ctx context.Context, videoID string) (bool, error) {
	return s.exists(ctx, milvusVideoKey(videoID))
}

func (s *MilvusStore) ExistsChunk(ctx context.Context, videoID, contentHash string) (bool, error) {
	return s.exists(ctx, milvusChunkKey(videoID, contentHash))
}

func (s *MilvusStore) upsertRow(ctx context.Context, key, kind string, chunk core.Chunk, meta string, vector []float32) error {
	_, err := s.mc.Upsert(ctx, s.coll, "",
		entity.NewColumnVarChar("chunk_key", []string{key}),
		entity.NewColumnVarChar("kind", []string{kind}),
		entity.NewColumnVarChar("video_id", []string{chunk.VideoID}),
		entity.NewColumnVarChar("content_hash", []string{chunk.ContentHash}),
		entity.NewColumnInt64("chunk_index", []int64{int64(chunk.Index)}),
		entity.NewColumnVarChar("chunk_text", []string{chunk.Text}),
		entity.NewColumnDouble("start_time", []float64{chunk.StartTS}),
		entity.NewColumnDouble("end_time", []float64{chunk.EndTS}),
		entity.NewColumnVarChar("metadata", []string{meta}),
		entity.NewColumnFloatVector("vector", s.dim, [][]float32{vector}),
	)
	return err
}

func (s *MilvusStore) UpsertChunk(ctx context.Context, chunk core.Chunk, vector []float32) (bool, error) {
	if len(vector) != s.dim {
		return false, errors.Errorf("vector has %d dimensions, collection expects %d", len(vector), s.dim)
	}
	key := milvusChunkKey(chunk.VideoID, chunk.ContentHash)
	exists, err := s.exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	meta, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return false, errors.Wrap(err, "encode chunk metadata")
	}
	if err := s.upsertRow(ctx, key, milvusKindChunk, chunk, string(meta), vector); err != nil {
		return false, errors.Wrapf(err, "upsert chunk %d of %s", chunk.Index, chunk.VideoID)
	}
	return true, nil
}

// MarkVideo stores the completion marker as a row of kind "video" with a unit placeholder vector.
func (s *MilvusStore) MarkVideo(ctx context.Context, id core.VideoIdentity, chunkCount int) error {
	meta, err := json.Marshal(map[string]interface{}{
		"source_hash": id.SourceHash,
		"byte_size":   id.ByteSize,
		"chunk_count": chunkCount,
	})
	if err != nil {
		return err
	}
	placeholder := make([]float32, s.dim)
	placeholder[0] = 1
	marker := core.Chunk{VideoID: id.VideoID, Index: -1}
	if err := s.upsertRow(ctx, milvusVideoKey(id.VideoID), milvusKindVideo, marker, string(meta), placeholder); err != nil {
		return errors.Wrapf(err, "mark video %s", id.VideoID)
	}
	return nil
}

func (s *MilvusStore) Close() error {
	return s.mc.Close()
}

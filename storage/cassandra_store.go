package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"videoIngest/core"
)

// ---------------- Cassandra implementation ----------------

// CassandraStore partitions chunks by video_id with content_hash as clustering key.
// Lightweight transactions (IF NOT EXISTS) give the atomic insert-if-absent.
type CassandraStore struct {
	session *gocql.Session
}

func NewCassandraStore(ctx context.Context, hosts []string, keyspace string) (*CassandraStore, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Consistency = gocql.Quorum
	cluster.SerialConsistency = gocql.Serial
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second

	if err := ensureKeyspace(ctx, cluster, keyspace); err != nil {
		return nil, err
	}
	cluster.Keyspace = keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Cassandra: %w", err)
	}

	s := &CassandraStore{session: session}
	if err := s.ensureTables(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return s, nil
}

func ensureKeyspace(ctx context.Context, cluster *gocql.ClusterConfig, keyspace string) error {
	session, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("failed to connect to Cassandra: %w", err)
	}
	defer session.Close()
	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`, keyspace)
	if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace %s: %w", keyspace, err)
	}
	return nil
}

func (s *CassandraStore) ensureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			video_id text PRIMARY KEY,
			source_hash text,
			byte_size bigint,
			chunk_count int,
			completed_at timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS video_chunks (
			video_id text,
			content_hash text,
			chunk_index int,
			chunk_text text,
			char_start int,
			char_end int,
			start_time double,
			end_time double,
			metadata text,
			embedding list<float>,
			created_at timestamp,
			PRIMARY KEY ((video_id), content_hash)
		)`,
	}
	for _, stmt := range stmts {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (s *CassandraStore) ExistsVideo(ctx context.Context, videoID string) (bool, error) {
	var id string
	err := s.session.Query(`SELECT video_id FROM videos WHERE video_id = ?`, videoID).
		WithContext(ctx).Scan(&id)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "query videos")
	}
	return true, nil
}

func (s *CassandraStore) ExistsChunk(ctx context.Context, videoID, contentHash string) (bool, error) {
	var hash string
	err := s.session.Query(`SELECT content_hash FROM video_chunks WHERE video_id = ? AND content_hash = ?`,
		videoID, contentHash).WithContext(ctx).Scan(&hash)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "query video_chunks")
	}
	return true, nil
}

func (s *CassandraStore) UpsertChunk(ctx context.Context, chunk core.Chunk, vector []float32) (bool, error) {
	meta, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return false, errors.Wrap(err, "encode chunk metadata")
	}
	existing := map[string]interface{}{}
	applied, err := s.session.Query(`
		INSERT INTO video_chunks (video_id, content_hash, chunk_index, chunk_text, char_start, char_end,
			start_time, end_time, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		IF NOT EXISTS`,
		chunk.VideoID, chunk.ContentHash, chunk.Index, chunk.Text, chunk.CharStart, chunk.CharEnd,
		chunk.StartTS, chunk.EndTS, string(meta), vector, time.Now(),
	).WithContext(ctx).MapScanCAS(existing)
	if err != nil {
		return false, errors.Wrapf(err, "insert chunk %d of %s", chunk.Index, chunk.VideoID)
	}
	return applied, nil
}

func (s *CassandraStore) MarkVideo(ctx context.Context, id core.VideoIdentity, chunkCount int) error {
	existing := map[string]interface{}{}
	_, err := s.session.Query(`
		INSERT INTO videos (video_id, source_hash, byte_size, chunk_count, completed_at)
		VALUES (?, ?, ?, ?, ?)
		IF NOT EXISTS`,
		id.VideoID, id.SourceHash, id.ByteSize, chunkCount, time.Now(),
	).WithContext(ctx).MapScanCAS(existing)
	if err != nil {
		return errors.Wrapf(err, "mark video %s", id.VideoID)
	}
	return nil
}

func (s *CassandraStore) Close() error {
	s.session.Close()
	return nil
}

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"videoIngest/core"
)

// Store persists chunks and completed videos. Implementations enforce uniqueness on video_id and on
// (video_id, content_hash) with an atomic insert-if-absent, so concurrent runs never store a
// chunk twice.
type Store interface {
	// ExistsVideo reports whether MarkVideo has completed for videoID.
	ExistsVideo(ctx context.Context, videoID string) (bool, error)
	ExistsChunk(ctx context.Context, videoID, contentHash string) (bool, error)
	// UpsertChunk inserts the chunk unless (video_id, content_hash) is present. inserted is false
	// when the row already existed.
	UpsertChunk(ctx context.Context, chunk core.Chunk, vector []float32) (inserted bool, err error)
	// MarkVideo records that every chunk of the video is stored.
	MarkVideo(ctx context.Context, id core.VideoIdentity, chunkCount int) error
	Close() error
}

// StoredChunk is a chunk row as kept by MemoryStore.
type StoredChunk struct {
	Chunk    core.Chunk
	Vector   []float32
	StoredAt time.Time
}

// VideoRecord is a completed video as kept by MemoryStore.
type VideoRecord struct {
	Identity    core.VideoIdentity
	ChunkCount  int
	CompletedAt time.Time
}

// ---------------- Memory implementation ----------------

type MemoryStore struct {
	mu     sync.RWMutex
	videos map[string]VideoRecord
	chunks map[string]map[string]StoredChunk // video_id -> content_hash -> row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos: map[string]VideoRecord{},
		chunks: map[string]map[string]StoredChunk{},
	}
}

func (s *MemoryStore) ExistsVideo(ctx context.Context, videoID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.videos[videoID]
	return ok, nil
}

func (s *MemoryStore) ExistsChunk(ctx context.Context, videoID, contentHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[videoID][contentHash]
	return ok, nil
}

func (s *MemoryStore) UpsertChunk(ctx context.Context, chunk core.Chunk, vector []float32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.chunks[chunk.VideoID]
	if rows == nil {
		rows = map[string]StoredChunk{}
		s.chunks[chunk.VideoID] = rows
	}
	if _, ok := rows[chunk.ContentHash]; ok {
		return false, nil
	}
	rows[chunk.ContentHash] = StoredChunk{
		Chunk:    chunk,
		Vector:   append([]float32(nil), vector...),
		StoredAt: time.Now(),
	}
	return true, nil
}

func (s *MemoryStore) MarkVideo(ctx context.Context, id core.VideoIdentity, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id.VideoID]; ok {
		return nil
	}
	s.videos[id.VideoID] = VideoRecord{Identity: id, ChunkCount: chunkCount, CompletedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Chunks returns the stored chunks of videoID ordered by chunk index.
func (s *MemoryStore) Chunks(videoID string) []StoredChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredChunk, 0, len(s.chunks[videoID]))
	for _, row := range s.chunks[videoID] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chunk.Index < out[j].Chunk.Index })
	return out
}

// ChunkCount returns the number of stored chunks across all videos.
func (s *MemoryStore) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rows := range s.chunks {
		n += len(rows)
	}
	return n
}

// Video returns the completion record of videoID.
func (s *MemoryStore) Video(videoID string) (VideoRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[videoID]
	return v, ok
}

package processors

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"videoIngest/core"
	"videoIngest/utils"
)

// TranscriptCache persists segments per video id so a video is transcribed once.
type TranscriptCache interface {
	Get(ctx context.Context, videoID string) ([]core.Segment, bool, error)
	Put(ctx context.Context, videoID string, segments []core.Segment) error
}

// transcriptRecord is the persisted form of a transcription.
type transcriptRecord struct {
	VideoID   string         `json:"video_id"`
	Segments  []core.Segment `json:"segments"`
	CreatedAt time.Time      `json:"created_at"`
}

// FileTranscriptCache stores <Dir>/<video_id>.json.
type FileTranscriptCache struct {
	Dir string
}

func NewFileTranscriptCache(dir string) (*FileTranscriptCache, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, errors.Wrapf(err, "create transcript cache dir %s", dir)
	}
	return &FileTranscriptCache{Dir: dir}, nil
}

func (f *FileTranscriptCache) path(videoID string) string {
	return filepath.Join(f.Dir, videoID+".json")
}

func (f *FileTranscriptCache) Get(ctx context.Context, videoID string) ([]core.Segment, bool, error) {
	data, err := os.ReadFile(f.path(videoID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec transcriptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, errors.Wrapf(err, "decode cached transcript %s", videoID)
	}
	return rec.Segments, true, nil
}

// Put writes through a temporary file so readers never see a partial transcript.
func (f *FileTranscriptCache) Put(ctx context.Context, videoID string, segments []core.Segment) error {
	data, err := json.MarshalIndent(transcriptRecord{VideoID: videoID, Segments: segments, CreatedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.Dir, videoID+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(videoID))
}

// RedisTranscriptCache stores transcripts under "transcript:<video_id>".
type RedisTranscriptCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTranscriptCache uses client; a zero ttl keeps entries forever.
func NewRedisTranscriptCache(client *redis.Client, ttl time.Duration) *RedisTranscriptCache {
	return &RedisTranscriptCache{client: client, ttl: ttl}
}

func redisTranscriptKey(videoID string) string {
	return "transcript:" + videoID
}

func (r *RedisTranscriptCache) Get(ctx context.Context, videoID string) ([]core.Segment, bool, error) {
	data, err := r.client.Get(ctx, redisTranscriptKey(videoID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec transcriptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, errors.Wrapf(err, "decode cached transcript %s", videoID)
	}
	return rec.Segments, true, nil
}

func (r *RedisTranscriptCache) Put(ctx context.Context, videoID string, segments []core.Segment) error {
	data, err := json.Marshal(transcriptRecord{VideoID: videoID, Segments: segments, CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisTranscriptKey(videoID), data, r.ttl).Err()
}

package processors

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"videoIngest/core"
)

// Transcriber produces the timed segments of a video. It is called at most once per ingestion.
type Transcriber interface {
	Transcribe(ctx context.Context, src core.Source) ([]core.Segment, error)
}

// WhisperTranscriber calls an OpenAI-compatible transcription endpoint.
type WhisperTranscriber struct {
	cli      *openai.Client
	model    string
	language string
	logger   *log.Logger
}

// NewWhisperTranscriber creates a transcriber for apiKey against baseURL. An empty baseURL keeps the
// OpenAI default.
func NewWhisperTranscriber(apiKey, baseURL, model, language string) *WhisperTranscriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		cli:      openai.NewClientWithConfig(cfg),
		model:    model,
		language: language,
		logger:   log.New(os.Stdout, "[ASR] ", log.LstdFlags),
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, src core.Source) ([]core.Segment, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	resp, err := w.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: src.Name(),
		Reader:   rc,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: w.language,
	})
	if err != nil {
		return nil, errors.Wrap(err, "transcription API failed")
	}

	segs := make([]core.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segs = append(segs, core.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	if len(segs) == 0 {
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return nil, errors.New("empty transcription result")
		}
		w.logger.Printf("Warning: %s returned no segments, using one segment for the whole text", src.Name())
		segs = append(segs, core.Segment{Start: 0, End: resp.Duration, Text: text})
	}
	return segs, nil
}

// JSONTranscriber reads precomputed segments from <Dir>/<source stem>.json. The file holds either a
// segment array or an object with a "segments" field.
type JSONTranscriber struct {
	Dir string
}

func (j JSONTranscriber) Transcribe(ctx context.Context, src core.Source) ([]core.Segment, error) {
	name := src.Name()
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	path := filepath.Join(j.Dir, stem+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read segments for %s", name)
	}
	return decodeSegments(data)
}

func decodeSegments(data []byte) ([]core.Segment, error) {
	var segs []core.Segment
	if err := json.Unmarshal(data, &segs); err == nil {
		return segs, nil
	}
	var wrapped struct {
		Segments []core.Segment `json:"segments"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, errors.Wrap(err, "decode segments")
	}
	return wrapped.Segments, nil
}

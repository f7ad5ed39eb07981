package processors

import (
	"unicode"

	"videoIngest/config"
	"videoIngest/core"
)

// Chunker splits a transcript into ordered character spans.
type Chunker interface {
	Split(t *Transcript) ([]core.Span, error)
}

// NewChunker builds the chunker for cfg. The configuration is validated as given; callers that want
// presets apply ChunkingConfig.WithDefaults first.
func NewChunker(cfg config.ChunkingConfig) (Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case config.StrategyFixed:
		return &fixedChunker{size: cfg.MaxChunkSize}, nil
	case config.StrategyRecursive:
		return &recursiveChunker{size: cfg.MaxChunkSize, overlap: cfg.Overlap}, nil
	case config.StrategySemantic:
		return &semanticChunker{size: cfg.MaxChunkSize, overlap: cfg.Overlap}, nil
	case config.StrategyVideoOptimized:
		return &semanticChunker{size: cfg.MaxChunkSize, overlap: cfg.Overlap, segmentCuts: true}, nil
	default:
		return nil, core.InvalidConfig("new chunker", "unhandled strategy "+string(cfg.Strategy))
	}
}

// normalizeSpans trims whitespace from span edges, drops blank spans and enforces
// non-decreasing starts and strictly increasing ends.
func normalizeSpans(runes []rune, spans []core.Span) []core.Span {
	out := make([]core.Span, 0, len(spans))
	for _, s := range spans {
		for s.Start < s.End && unicode.IsSpace(runes[s.Start]) {
			s.Start++
		}
		for s.End > s.Start && unicode.IsSpace(runes[s.End-1]) {
			s.End--
		}
		if s.Len() <= 0 {
			continue
		}
		if n := len(out); n > 0 {
			prev := out[n-1]
			if s.Start < prev.Start {
				s.Start = prev.Start
			}
			if s.End <= prev.End {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// hardCut splits [start, end) into windows of at most size characters.
func hardCut(start, end, size int) []core.Span {
	var out []core.Span
	for s := start; s < end; s += size {
		e := s + size
		if e > end {
			e = end
		}
		out = append(out, core.Span{Start: s, End: e})
	}
	return out
}

// BuildChunks turns spans into indexed chunks with text, fingerprint and metadata.
// tokens may be nil.
func BuildChunks(t *Transcript, spans []core.Span, videoID string, cfg config.ChunkingConfig, tokens TokenCounter) []core.Chunk {
	chunks := make([]core.Chunk, 0, len(spans))
	for i, span := range spans {
		text := t.Slice(span)
		meta := map[string]interface{}{
			"chunking_strategy": string(cfg.Strategy),
			"max_chunk_size":    cfg.MaxChunkSize,
			"overlap":           cfg.Overlap,
			"word_count":        len(splitWords(text)),
			"character_count":   span.Len(),
		}
		if tokens != nil {
			if n, err := tokens.Count(text); err == nil {
				meta["token_count"] = n
			}
		}
		chunks = append(chunks, core.Chunk{
			VideoID:     videoID,
			Index:       i,
			Text:        text,
			CharStart:   span.Start,
			CharEnd:     span.End,
			ContentHash: core.ChunkFingerprint(text),
			Metadata:    meta,
		})
	}
	return chunks
}

func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, text[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	return words
}

// ChunkStatistics summarises the chunks produced for one video.
type ChunkStatistics struct {
	TotalChunks  int     `json:"total_chunks"`
	AverageSize  float64 `json:"average_size"`
	MinSize      int     `json:"min_size"`
	MaxSize      int     `json:"max_size"`
	TotalWords   int     `json:"total_words"`
	TotalSeconds float64 `json:"total_seconds"`
}

// ComputeChunkStatistics returns zero statistics for an empty slice.
func ComputeChunkStatistics(chunks []core.Chunk) ChunkStatistics {
	var st ChunkStatistics
	if len(chunks) == 0 {
		return st
	}
	st.TotalChunks = len(chunks)
	st.MinSize = -1
	total := 0
	for _, c := range chunks {
		size := c.CharEnd - c.CharStart
		total += size
		if st.MinSize < 0 || size < st.MinSize {
			st.MinSize = size
		}
		if size > st.MaxSize {
			st.MaxSize = size
		}
		st.TotalWords += len(splitWords(c.Text))
		st.TotalSeconds += c.EndTS - c.StartTS
	}
	st.AverageSize = float64(total) / float64(len(chunks))
	return st
}

package processors

import (
	"log"
	"sort"
	"strings"

	"videoIngest/core"
)

// Transcript is the reconstructed text of a segment sequence plus the character range of every
// segment in it. Offsets count runes.
type Transcript struct {
	runes    []rune
	segments []core.Segment
	ranges   []core.Span
	maxEnd   float64
}

// NewTranscript joins the trimmed, non-empty segment texts with a single space.
// Segments whose text is blank contribute no characters but still count towards MaxEnd.
func NewTranscript(segments []core.Segment) *Transcript {
	t := &Transcript{}
	var b strings.Builder
	offset := 0
	for _, seg := range segments {
		if seg.End > t.maxEnd {
			t.maxEnd = seg.End
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if len(t.ranges) > 0 {
			b.WriteByte(' ')
			offset++
		}
		n := len([]rune(text))
		b.WriteString(text)
		t.segments = append(t.segments, seg)
		t.ranges = append(t.ranges, core.Span{Start: offset, End: offset + n})
		offset += n
	}
	t.runes = []rune(b.String())
	return t
}

// Len returns the transcript length in characters.
func (t *Transcript) Len() int {
	return len(t.runes)
}

// Text returns the whole transcript.
func (t *Transcript) Text() string {
	return string(t.runes)
}

// Slice returns the text covered by span.
func (t *Transcript) Slice(span core.Span) string {
	return string(t.runes[span.Start:span.End])
}

// SegmentRanges returns the character range of each segment that contributed text, in order.
func (t *Transcript) SegmentRanges() []core.Span {
	return t.ranges
}

// MaxEnd is the largest segment end time seen.
func (t *Transcript) MaxEnd() float64 {
	return t.maxEnd
}

// Locate resolves a character offset to the segment holding it and the offset within that segment.
// A separator resolves to the start of the following segment.
func (t *Transcript) Locate(offset int) (segment int, within int, ok bool) {
	if offset < 0 || offset >= len(t.runes) {
		return 0, 0, false
	}
	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].End > offset })
	if i == len(t.ranges) {
		return 0, 0, false
	}
	within = offset - t.ranges[i].Start
	if within < 0 {
		within = 0
	}
	return i, within, true
}

// segmentsOverlapping returns the first and last segment indices sharing characters with span.
// A span lying wholly inside a separator resolves to the following segment.
func (t *Transcript) segmentsOverlapping(span core.Span) (first, last int, ok bool) {
	if span.Start >= span.End {
		return 0, 0, false
	}
	if first, _, ok = t.Locate(span.Start); !ok {
		return 0, 0, false
	}
	if last, _, ok = t.Locate(span.End - 1); !ok {
		return 0, 0, false
	}
	// A trailing separator belongs before the segment Locate resolved it to.
	if last > first && t.ranges[last].Start >= span.End {
		last--
	}
	return first, last, true
}

// DropInvalidSegments removes segments with End <= Start or a negative start.
func DropInvalidSegments(segments []core.Segment, logger *log.Logger) []core.Segment {
	valid := make([]core.Segment, 0, len(segments))
	for i, seg := range segments {
		if !seg.Valid() {
			if logger != nil {
				logger.Printf("Warning: dropping segment %d with invalid range [%.3f, %.3f]", i, seg.Start, seg.End)
			}
			continue
		}
		valid = append(valid, seg)
	}
	return valid
}

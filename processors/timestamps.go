package processors

import (
	"log"
	"math"
	"os"

	"videoIngest/core"
)

// maxMinDuration caps the minimum chunk duration in seconds.
const maxMinDuration = 0.05

// Reconciler maps chunk character spans onto the segment timeline.
type Reconciler struct {
	logger *log.Logger
}

func NewReconciler(logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stdout, "[RECONCILER] ", log.LstdFlags)
	}
	return &Reconciler{logger: logger}
}

// Assign sets StartTS and EndTS on every chunk. Afterwards StartTS >= 0, EndTS <= t.MaxEnd(),
// EndTS-StartTS >= min(0.05, MaxEnd/(2N)) and each chunk starts no earlier than its predecessor ends.
func (r *Reconciler) Assign(t *Transcript, chunks []core.Chunk) {
	n := len(chunks)
	if n == 0 {
		return
	}
	total := t.MaxEnd()
	eps := math.Min(maxMinDuration, total/float64(2*n))

	starts := make([]float64, n)
	ends := make([]float64, n)
	for i := range chunks {
		span := core.Span{Start: chunks[i].CharStart, End: chunks[i].CharEnd}
		s, e, ok := r.interpolate(t, span)
		if !ok {
			r.logger.Printf("Warning: %v: chunk %d of %s [%d, %d), using uniform timing",
				core.ErrUnresolvableSpan, chunks[i].Index, chunks[i].VideoID, span.Start, span.End)
			s = total * float64(i) / float64(n)
			e = total * float64(i+1) / float64(n)
			setMeta(&chunks[i], "timestamp_fallback", true)
		}
		starts[i], ends[i] = s, e
	}

	final := clampTimeline(starts, ends, total, eps)
	for i := range chunks {
		if !nearlyEqual(final[i][0], starts[i]) || !nearlyEqual(final[i][1], ends[i]) {
			setMeta(&chunks[i], "timestamp_adjusted", true)
		}
		chunks[i].StartTS = final[i][0]
		chunks[i].EndTS = final[i][1]
	}
}

// interpolate places the span start inside its first segment and the span end inside its last,
// proportionally to the character position within each segment.
func (r *Reconciler) interpolate(t *Transcript, span core.Span) (start, end float64, ok bool) {
	first, last, ok := t.segmentsOverlapping(span)
	if !ok {
		return 0, 0, false
	}
	start = positionInSegment(t.segments[first], t.ranges[first], span.Start)
	end = positionInSegment(t.segments[last], t.ranges[last], span.End)
	return start, end, true
}

func positionInSegment(seg core.Segment, rng core.Span, offset int) float64 {
	if rng.Len() <= 0 {
		return seg.Start
	}
	frac := float64(offset-rng.Start) / float64(rng.Len())
	frac = math.Max(0, math.Min(1, frac))
	return seg.Start + frac*seg.Duration()
}

// clampTimeline runs a forward pass that pushes each chunk past its predecessor and a backward pass
// that pulls everything under total.
func clampTimeline(starts, ends []float64, total, eps float64) [][2]float64 {
	n := len(starts)
	out := make([][2]float64, n)

	prevEnd := 0.0
	for i := 0; i < n; i++ {
		s := math.Max(starts[i], prevEnd)
		e := math.Max(ends[i], s+eps)
		out[i] = [2]float64{s, e}
		prevEnd = e
	}

	limit := total
	for i := n - 1; i >= 0; i-- {
		e := math.Min(out[i][1], limit)
		s := out[i][0]
		// Only pull the start back when the end moved; e-eps can round below a start that already fits.
		if s > e-eps+timeTolerance {
			s = e - eps
		}
		out[i] = [2]float64{s, e}
		limit = s
	}
	return out
}

const timeTolerance = 1e-9

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= timeTolerance
}

func setMeta(c *core.Chunk, key string, value interface{}) {
	if c.Metadata == nil {
		c.Metadata = map[string]interface{}{}
	}
	c.Metadata[key] = value
}

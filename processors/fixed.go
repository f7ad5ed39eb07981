package processors

import "videoIngest/core"

// fixedChunker cuts contiguous windows of size characters. Overlap does not apply and windows are
// returned as cut, whitespace included.
type fixedChunker struct {
	size int
}

func (c *fixedChunker) Split(t *Transcript) ([]core.Span, error) {
	if t.Len() == 0 {
		return nil, nil
	}
	return hardCut(0, t.Len(), c.size), nil
}

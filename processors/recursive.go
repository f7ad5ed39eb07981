package processors

import "videoIngest/core"

// separatorLadder is tried in order: paragraph, line, sentence, word.
// A hard character cut applies once the ladder is exhausted.
var separatorLadder = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

type recursiveChunker struct {
	size    int
	overlap int
}

func (c *recursiveChunker) Split(t *Transcript) ([]core.Span, error) {
	if t.Len() == 0 {
		return nil, nil
	}
	pieces := c.pieces(t.runes, 0, t.Len(), 0)
	return normalizeSpans(t.runes, c.merge(pieces)), nil
}

// pieces breaks [start, end) into contiguous pieces of at most c.size characters, descending the
// separator ladder only for pieces that are still too long.
func (c *recursiveChunker) pieces(runes []rune, start, end, level int) []core.Span {
	if end-start <= c.size {
		return []core.Span{{Start: start, End: end}}
	}
	if level >= len(separatorLadder) {
		return hardCut(start, end, c.size)
	}

	parts := splitKeepSeparator(runes, start, end, separatorLadder[level])
	if len(parts) == 1 {
		return c.pieces(runes, start, end, level+1)
	}
	var out []core.Span
	for _, p := range parts {
		if p.Len() > c.size {
			out = append(out, c.pieces(runes, p.Start, p.End, level+1)...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// merge packs consecutive pieces greedily. Each new span backs up overlap characters from the
// previous end without reaching the previous start.
func (c *recursiveChunker) merge(pieces []core.Span) []core.Span {
	if len(pieces) == 0 {
		return nil
	}
	var out []core.Span
	cur := pieces[0]
	for _, p := range pieces[1:] {
		if p.End-cur.Start <= c.size {
			cur.End = p.End
			continue
		}
		out = append(out, cur)
		next := cur.End - c.overlap
		if next <= cur.Start {
			next = cur.Start + 1
		}
		if next < p.End-c.size {
			next = p.End - c.size
		}
		cur = core.Span{Start: next, End: p.End}
	}
	return append(out, cur)
}

// splitKeepSeparator splits [start, end) after every occurrence of sep. The separator stays with the
// piece before it.
func splitKeepSeparator(runes []rune, start, end int, sep []rune) []core.Span {
	var out []core.Span
	from := start
	for i := start; i+len(sep) <= end; {
		if hasPrefixAt(runes, i, sep) {
			cut := i + len(sep)
			out = append(out, core.Span{Start: from, End: cut})
			from = cut
			i = cut
			continue
		}
		i++
	}
	if from < end {
		out = append(out, core.Span{Start: from, End: end})
	}
	return out
}

func hasPrefixAt(runes []rune, at int, sep []rune) bool {
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}

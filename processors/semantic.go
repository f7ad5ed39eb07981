package processors

import (
	"sort"
	"strings"
	"unicode"

	"videoIngest/core"
)

// abbreviations never end a sentence when followed by a period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sr": true, "jr": true,
	"st": true, "vs": true, "etc": true, "e.g": true, "i.e": true, "inc": true, "ltd": true,
	"no": true, "fig": true, "approx": true,
}

// semanticChunker groups whole sentences. With segmentCuts set, segment ends are cut points too.
type semanticChunker struct {
	size        int
	overlap     int
	segmentCuts bool
}

func (c *semanticChunker) Split(t *Transcript) ([]core.Span, error) {
	if t.Len() == 0 {
		return nil, nil
	}

	cuts := sentenceCuts(t.runes)
	if c.segmentCuts {
		for _, r := range t.ranges[1:] {
			cuts = append(cuts, r.Start)
		}
		sort.Ints(cuts)
	}

	units := c.units(cuts, t.Len())
	return normalizeSpans(t.runes, c.group(units)), nil
}

// units turns cut points into contiguous spans, hard-cutting any span longer than c.size.
func (c *semanticChunker) units(cuts []int, n int) []core.Span {
	var out []core.Span
	prev := 0
	for _, cut := range append(cuts, n) {
		if cut <= prev {
			continue
		}
		if cut-prev > c.size {
			out = append(out, hardCut(prev, cut, c.size)...)
		} else {
			out = append(out, core.Span{Start: prev, End: cut})
		}
		prev = cut
	}
	return out
}

// group packs runs of whole units up to c.size. A new span repeats the trailing units of the
// previous one that fit within c.overlap, and always adds at least one unit of its own.
func (c *semanticChunker) group(units []core.Span) []core.Span {
	var out []core.Span
	first := 0
	for first < len(units) {
		last := first
		for last+1 < len(units) && units[last+1].End-units[first].Start <= c.size {
			last++
		}
		out = append(out, core.Span{Start: units[first].Start, End: units[last].End})
		if last+1 >= len(units) {
			break
		}

		next := last + 1
		if c.overlap > 0 {
			k := last
			for k > first && units[last].End-units[k].Start <= c.overlap {
				k--
			}
			k++
			for k <= last && units[next].End-units[k].Start > c.size {
				k++
			}
			if k <= last {
				next = k
			}
		}
		first = next
	}
	return out
}

// sentenceCuts returns the offsets right after each sentence end, including trailing whitespace.
func sentenceCuts(runes []rune) []int {
	var cuts []int
	n := len(runes)
	for i := 0; i < n; i++ {
		r := runes[i]
		if isCJKTerminal(r) {
			end := skipClosers(runes, i+1)
			end = skipSpace(runes, end)
			if end < n {
				cuts = append(cuts, end)
			}
			i = end - 1
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		for end < n && (runes[end] == '.' || runes[end] == '!' || runes[end] == '?') {
			end++
		}
		end = skipClosers(runes, end)
		if end < n && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		if r == '.' && isAbbreviation(runes, i) {
			continue
		}
		end = skipSpace(runes, end)
		if end < n {
			cuts = append(cuts, end)
		}
		i = end - 1
	}
	return cuts
}

func isCJKTerminal(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func skipClosers(runes []rune, i int) int {
	for i < len(runes) && strings.ContainsRune("\"')]”’」", runes[i]) {
		i++
	}
	return i
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

// isAbbreviation reports whether the word ending at the period at dot is a known abbreviation or a
// single letter initial.
func isAbbreviation(runes []rune, dot int) bool {
	start := dot
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	word := strings.ToLower(strings.TrimLeft(string(runes[start:dot]), "\"'(["))
	if word == "" {
		return false
	}
	if len([]rune(word)) == 1 && unicode.IsUpper(runes[dot-1]) {
		return true
	}
	return abbreviations[word]
}

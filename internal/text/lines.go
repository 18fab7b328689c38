package text

import (
	"strings"
	"unicode/utf8"
)

// RuneLen counts characters the way upstream length caps do.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// SplitLines packs the lines of text into chunks of at most limit characters,
// joined by newlines. Lines are never reordered. A line longer than limit is
// split on whitespace, and a single word longer than limit is cut.
func SplitLines(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}

	var (
		chunks []string
		b      strings.Builder
		size   int
		parts  int
	)

	flush := func() {
		if parts == 0 {
			return
		}
		chunks = append(chunks, b.String())
		b.Reset()
		size, parts = 0, 0
	}

	for _, line := range strings.Split(text, "\n") {
		for _, piece := range splitLong(line, limit) {
			n := RuneLen(piece)
			sep := 0
			if parts > 0 {
				sep = 1
			}
			if parts > 0 && size+sep+n > limit {
				flush()
				sep = 0
			}
			if sep == 1 {
				b.WriteByte('\n')
			}
			b.WriteString(piece)
			size += sep + n
			parts++
		}
	}
	flush()

	return chunks
}

func splitLong(line string, limit int) []string {
	if RuneLen(line) <= limit {
		return []string{line}
	}

	var (
		pieces []string
		cur    strings.Builder
		size   int
	)
	for _, word := range strings.Fields(line) {
		for _, w := range cutWord(word, limit) {
			n := RuneLen(w)
			if size > 0 && size+1+n > limit {
				pieces = append(pieces, cur.String())
				cur.Reset()
				size = 0
			}
			if size > 0 {
				cur.WriteByte(' ')
				size++
			}
			cur.WriteString(w)
			size += n
		}
	}
	if size > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}

func cutWord(word string, limit int) []string {
	runes := []rune(word)
	if len(runes) <= limit {
		return []string{word}
	}
	var out []string
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segmenter splits text into sentences. It is safe for concurrent use.
type Segmenter struct {
	abbreviations map[string]struct{}
}

var abbreviations = map[string][]string{
	"en": {
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs", "etc", "e.g", "i.e", "inc", "ltd",
		"co", "corp", "no", "fig", "dept", "univ", "approx", "ph.d", "m.sc", "b.sc", "jan", "feb",
		"mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	},
	"fr": {
		"m", "mm", "mme", "mmes", "mlle", "dr", "pr", "me", "st", "ste", "etc", "cf", "ex", "env",
		"vol", "av", "apr", "boul", "ch", "éd", "fig", "univ", "dépt", "coll", "chap", "réf", "tél",
		"ph.d", "janv", "févr", "avr", "juil", "sept", "oct", "nov", "déc",
	},
}

func NewSegmenter(lang string) *Segmenter {
	s := &Segmenter{abbreviations: map[string]struct{}{}}
	for _, a := range abbreviations[lang] {
		s.abbreviations[a] = struct{}{}
	}
	return s
}

// Segment returns the sentences of text in order. Newlines always end a
// sentence. Returned sentences are trimmed and never empty.
func (s *Segmenter) Segment(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, s.segmentLine([]rune(line))...)
	}
	return out
}

func (s *Segmenter) segmentLine(runes []rune) []string {
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}

		end := i + 1
		for end < len(runes) && (isTerminal(runes[end]) || isCloser(runes[end])) {
			end++
		}

		// "3.14", "example.com", "e.g.x": not a boundary.
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}

		if runes[i] == '.' && end-i == 1 && s.isAbbreviation(runes[start:i]) {
			i = end - 1
			continue
		}

		out = appendSentence(out, runes[start:end])
		start = end
		i = end - 1
	}
	return appendSentence(out, runes[start:])
}

// isAbbreviation reports whether the word right before a period is a known
// abbreviation or a single-letter initial.
func (s *Segmenter) isAbbreviation(before []rune) bool {
	j := len(before)
	for j > 0 && (unicode.IsLetter(before[j-1]) || before[j-1] == '.') {
		j--
	}
	word := strings.ToLower(string(before[j:]))
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		return true
	}
	_, ok := s.abbreviations[word]
	return ok
}

func appendSentence(out []string, runes []rune) []string {
	sentence := strings.TrimSpace(string(runes))
	if sentence == "" {
		return out
	}
	return append(out, sentence)
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '”', '’':
		return true
	}
	return false
}

// GroupParagraphs joins consecutive sentences into paragraphs of exactly size
// sentences. The last paragraph may be shorter.
func GroupParagraphs(sentences []string, size int) []string {
	if size <= 0 {
		size = 1
	}

	var paragraphs []string
	group := make([]string, 0, size)
	for i, s := range sentences {
		group = append(group, strings.TrimLeftFunc(s, unicode.IsSpace))
		if len(group) == size || i == len(sentences)-1 {
			paragraphs = append(paragraphs, strings.Join(group, "\n"))
			group = group[:0]
		}
	}
	return paragraphs
}

// Package caption turns the fragment stream into one growing caption: it
// translates each fragment, stitches overlapping translations together and
// hands the result to a sink.
package caption

import (
	"strings"
	"unicode/utf8"
)

// Merge stitches next onto prev at their longest shared suffix/prefix
// boundary. It scans prev's offsets from the start, so the first offset whose
// suffix begins next is also the longest overlap. When one exists the result
// is prev extended by whatever next adds past the overlap, and ok is true.
// Otherwise next is returned unchanged with ok false; an empty prev never
// overlaps.
func Merge(prev, next string) (merged string, ok bool) {
	for i := 0; i < len(prev); {
		if strings.HasPrefix(next, prev[i:]) {
			return prev + next[len(prev)-i:], true
		}
		_, size := utf8.DecodeRuneInString(prev[i:])
		i += size
	}
	return next, false
}

// LastWords joins the last n whitespace-separated words of text with single
// spaces.
func LastWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

// LastSentence returns the trimmed text after the last sentence terminator
// (".", "?" or "!" followed by a space). Text with no terminator is returned
// trimmed in full.
func LastSentence(text string) string {
	cut := -1
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '?', '!':
			if text[i+1] == ' ' {
				cut = i + 2
			}
		}
	}
	if cut < 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[cut:])
}

// Package text turns raw input into the word sequence shown by the reader.
package text

import "strings"

// Words is an ordered, read-only sequence of non-empty tokens.
type Words []string

// Tokenize splits text on runs of whitespace and drops empty tokens.
// Whitespace-only input yields an empty sequence.
func Tokenize(text string) Words {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Words{}
	}
	return Words(fields)
}

// Len returns the number of words.
func (w Words) Len() int {
	return len(w)
}

// At returns the word at index i, or "" when i is out of range.
func (w Words) At(i int) string {
	if i < 0 || i >= len(w) {
		return ""
	}
	return w[i]
}

// Empty reports whether nothing is loaded.
func (w Words) Empty() bool {
	return len(w) == 0
}

package convert

import (
	"strings"
)

// Tokenization operates on bytes. ASCII alphanumerics are lowercased and
// kept; bytes >= 0x80 pass through opaquely so multi-byte sequences survive
// intact; everything else collapses to a single space. The FTS engine does
// its own match-side tokenization on top of this stream.

// BuildTokens normalizes body text into the token stream stored in the
// full-text index. When ngram > 1, every contiguous ngram-length substring
// of the space-free stream is appended after the word-level tokens,
// space-joined, to support substring matching.
func BuildTokens(input string, ngram int) string {
	collapsed := collapseSpaces(collapsePunctuation(input))
	if ngram <= 1 {
		return collapsed
	}

	compact := strings.ReplaceAll(collapsed, " ", "")

	var b strings.Builder
	b.Grow(len(collapsed) + len(compact)*2)
	b.WriteString(collapsed)
	if collapsed != "" {
		b.WriteByte(' ')
	}
	for i := 0; i+ngram <= len(compact); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(compact[i : i+ngram])
	}
	return b.String()
}

// collapsePunctuation lowercases alphanumerics and folds every other ASCII
// byte into a single space.
func collapsePunctuation(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	lastSpace := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b.WriteByte(c)
			lastSpace = false
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
			lastSpace = false
		case c >= 0x80:
			b.WriteByte(c)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return b.String()
}

// collapseSpaces folds whitespace runs into single spaces and trims the
// ends.
func collapseSpaces(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	lastSpace := true
	for i := 0; i < len(input); i++ {
		c := input[i]
		if isSpaceByte(c) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteByte(c)
		lastSpace = false
	}
	out := b.String()
	return strings.TrimSuffix(out, " ")
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

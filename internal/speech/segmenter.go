package speech

import (
	"regexp"
	"strings"
)

// sentencePattern matches a run of text closed by one or more terminators.
// Leading terminators are folded into the following sentence so that a
// fragment boundary inside "?!" or "..." never drops characters.
var sentencePattern = regexp.MustCompile(`[.!?]*[^.!?]+[.!?]+`)

// Segmenter turns a stream of text fragments into speakable sentences.
// It is not safe for concurrent use; a chat turn owns one segmenter.
type Segmenter struct {
	buf strings.Builder
}

// Write appends a fragment and returns every sentence completed by it,
// trimmed of surrounding whitespace.
func (s *Segmenter) Write(fragment string) []string {
	s.buf.WriteString(fragment)
	raw, rest := split(s.buf.String())
	if len(raw) == 0 {
		return nil
	}
	s.buf.Reset()
	s.buf.WriteString(rest)

	out := make([]string, 0, len(raw))
	for _, sentence := range raw {
		if trimmed := strings.TrimSpace(sentence); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Flush returns whatever is left in the buffer, terminated or not, and resets it.
func (s *Segmenter) Flush() string {
	rest := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return rest
}

// Pending returns the unsegmented remainder without consuming it.
func (s *Segmenter) Pending() string {
	return s.buf.String()
}

// split cuts text into complete sentences and the unmatched remainder.
// Concatenating the sentences and the remainder yields text unchanged.
func split(text string) (sentences []string, rest string) {
	matches := sentencePattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil, text
	}
	start := 0
	for _, m := range matches {
		// Matches are contiguous; any gap is attached to the next sentence.
		sentences = append(sentences, text[start:m[1]])
		start = m[1]
	}
	return sentences, text[start:]
}

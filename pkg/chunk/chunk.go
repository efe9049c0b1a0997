// Package chunk splits oversized documents into overlapping sub-documents
// along sentence boundaries before ingestion.
package chunk

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidConfig is returned for unusable chunk settings (overlap >= size).
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// NeedsChunking reports whether text exceeds maxSize bytes.
func NeedsChunking(text string, maxSize int) bool {
	return len(text) > maxSize
}

// Chunk returns [text] untouched when it fits within maxSize bytes, otherwise
// splits it via Split. This is the ingestion fast path.
func Chunk(text string, maxSize, chunkSize, overlap int) ([]string, error) {
	if !NeedsChunking(text, maxSize) {
		return []string{text}, nil
	}
	return Split(text, chunkSize, overlap)
}

// Split divides text into ordered windows of approximately chunkSize bytes
// with roughly overlap bytes shared between consecutive windows. Splitting
// happens on sentence boundaries only, so a single sentence longer than
// chunkSize is emitted whole rather than cut mid-word. Every byte of the
// input appears in at least one window.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, overlap, chunkSize)
	}
	if len(text) <= chunkSize {
		return []string{text}, nil
	}

	sentences := splitSentences(text)

	var chunks []string
	var carry []string // trailing sentences repeated from the previous window
	i := 0
	for i < len(sentences) {
		var b strings.Builder
		for _, s := range carry {
			b.WriteString(s)
		}

		// Always consume at least one sentence per window so the walk
		// terminates even when the carry alone approaches chunkSize.
		consumedStart := i
		b.WriteString(sentences[i])
		i++
		for i < len(sentences) && b.Len()+len(sentences[i]) <= chunkSize {
			b.WriteString(sentences[i])
			i++
		}
		chunks = append(chunks, b.String())

		if i < len(sentences) {
			carry = overlapTail(sentences[consumedStart:i], overlap)
		}
	}
	return chunks, nil
}

// overlapTail selects whole trailing sentences totalling at most maxBytes.
func overlapTail(consumed []string, maxBytes int) []string {
	if maxBytes <= 0 {
		return nil
	}
	total := 0
	start := len(consumed)
	for start > 0 && total+len(consumed[start-1]) <= maxBytes {
		total += len(consumed[start-1])
		start--
	}
	return consumed[start:]
}

// splitSentences segments text so that concatenating the result reproduces
// the input byte-for-byte. A sentence ends at '.', '!', '?' or a line break
// followed by whitespace; the trailing whitespace stays attached to the
// sentence it closes.
func splitSentences(text string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		j := i
		for j < len(text) {
			r2, s2 := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r2) {
				break
			}
			j += s2
		}
		if j > i || r == '\n' {
			out = append(out, text[start:j])
			start, i = j, j
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

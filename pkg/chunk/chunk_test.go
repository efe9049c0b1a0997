package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reassemble strips each chunk's overlap prefix (a suffix of the previous
// chunk) and concatenates the remainders.
func reassemble(t *testing.T, chunks []string) string {
	t.Helper()
	if len(chunks) == 0 {
		return ""
	}
	out := chunks[0]
	for i := 1; i < len(chunks); i++ {
		c := chunks[i]
		overlap := 0
		for n := len(c); n > 0; n-- {
			if strings.HasSuffix(chunks[i-1], c[:n]) {
				overlap = n
				break
			}
		}
		out += c[overlap:]
	}
	return out
}

func TestChunk_SmallDocumentPassesThrough(t *testing.T) {
	chunks, err := Chunk("short text", 1024, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"short text"}, chunks)
}

func TestSplit_InvalidConfig(t *testing.T) {
	_, err := Split("text", 100, 100)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = Split("text", 100, 150)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = Split("text", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = Split("text", 100, -1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSplit_CoversEveryByte(t *testing.T) {
	// Distinct sentences so overlap-stripping in reassemble is unambiguous.
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "Sentence number %d of the corpus text. ", i)
	}
	text := b.String()

	chunks, err := Split(text, 512, 64)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, reassemble(t, chunks))
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("One sentence here. Another one follows! Is this a question? ", 50)
	a, err := Split(text, 256, 32)
	require.NoError(t, err)
	b, err := Split(text, 256, 32)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplit_ConsecutiveChunksOverlap(t *testing.T) {
	text := strings.Repeat("Sentences repeat here endlessly. ", 100)
	chunks, err := Split(text, 300, 60)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		// Each chunk begins with at least one sentence repeated from its predecessor.
		assert.True(t, strings.HasSuffix(chunks[i-1], "Sentences repeat here endlessly. "))
		assert.True(t, strings.HasPrefix(chunks[i], "Sentences repeat here endlessly. "))
	}
}

func TestSplit_OversizedSentenceEmittedWhole(t *testing.T) {
	long := strings.Repeat("a", 500) + ". "
	text := "Short one. " + long + "Tail sentence."
	chunks, err := Split(text, 100, 10)
	require.NoError(t, err)

	found := false
	for _, c := range chunks {
		if strings.Contains(c, strings.Repeat("a", 500)+".") {
			found = true
		}
	}
	assert.True(t, found, "oversized sentence must not be cut mid-word")
	assert.Equal(t, text, reassemble(t, chunks))
}

func TestSplit_NoSentenceBoundaries(t *testing.T) {
	// One giant unbroken token: emitted as a single window rather than corrupted.
	text := strings.Repeat("x", 5000)
	chunks, err := Split(text, 1000, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{text}, chunks)
}

func TestNeedsChunking(t *testing.T) {
	assert.False(t, NeedsChunking("abc", 3))
	assert.True(t, NeedsChunking("abcd", 3))
}

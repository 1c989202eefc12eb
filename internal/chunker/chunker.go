// Package chunker splits raw document text into overlapping fixed-size
// windows suitable for embedding. Window and overlap sizes are expressed in
// characters (runes) so multi-byte text is never split mid-character.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// Default window geometry. 1200 chars is roughly 300 tokens for English
// prose, which keeps each chunk comfortably below embedding model input
// limits while still carrying enough context to answer from.
const (
	// DefaultWindowChars is the maximum number of characters per chunk.
	DefaultWindowChars = 1200

	// DefaultOverlapChars is the number of characters shared between
	// consecutive chunks so sentences straddling a boundary survive intact.
	DefaultOverlapChars = 150
)

// whitespaceRun matches any run of whitespace, collapsed to a single space
// during normalisation.
var whitespaceRun = regexp.MustCompile(`\s+`)

// Chunk is a bounded contiguous window of an ingested document.
type Chunk struct {
	// Index is the chunk's 0-based position in generation order. Indices are
	// dense over emitted chunks — dropped empty windows leave no gaps.
	Index int

	// Text is the normalised chunk content.
	Text string
}

// Chunker splits normalised text into overlapping windows. The zero value is
// not usable; construct with New so the geometry is validated once.
type Chunker struct {
	// windowChars is the maximum chunk length in characters.
	windowChars int

	// overlapChars is the number of trailing characters repeated at the
	// start of the next chunk.
	overlapChars int
}

// New constructs a Chunker with the given window geometry. An overlap equal
// to or larger than the window would make the scan position advance by zero
// or go backwards, so that configuration is rejected outright rather than
// clamped — a silently adjusted overlap would change chunk boundaries and
// invalidate previously ingested collections.
func New(windowChars, overlapChars int) (*Chunker, error) {
	if windowChars <= 0 {
		return nil, fmt.Errorf("chunker: window must be positive, got %d", windowChars)
	}
	if overlapChars < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", overlapChars)
	}
	if overlapChars >= windowChars {
		return nil, fmt.Errorf("chunker: overlap (%d) must be smaller than window (%d)", overlapChars, windowChars)
	}
	return &Chunker{windowChars: windowChars, overlapChars: overlapChars}, nil
}

// Default returns a Chunker with the default 1200/150 geometry.
func Default() *Chunker {
	c, err := New(DefaultWindowChars, DefaultOverlapChars)
	if err != nil {
		// Unreachable: the defaults are valid by construction.
		panic(err)
	}
	return c
}

// Chunk normalises text (whitespace runs collapsed to a single space, ends
// trimmed) and splits it into overlapping windows. Returns nil for empty or
// whitespace-only input. The last window always ends exactly at the end of
// the normalised text, even when shorter than the configured window size.
func (c *Chunker) Chunk(text string) []Chunk {
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []Chunk

	for start := 0; start < len(runes); start += c.windowChars - c.overlapChars {
		end := start + c.windowChars
		if end > len(runes) {
			end = len(runes)
		}

		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: window})
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Texts returns the chunk texts in generation order. Convenience for batch
// embedding, which takes a plain string slice.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return texts
}

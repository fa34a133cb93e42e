package documents

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk is a bounded window of document text, the unit of embedding and
// retrieval. Seq preserves the original ordering within a document.
type Chunk struct {
	Text   string
	Source string
	Seq    int
}

// Chunker splits loaded segments into overlapping fixed-size windows.
// Windows prefer to end on a paragraph break, then a line break, then a
// word boundary; only when none is available does a window cut mid-word.
// Splitting is purely positional, so identical input always yields
// identical chunks.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

func (c *Chunker) Chunk(segments []Segment) []Chunk {
	var chunks []Chunk
	for _, seg := range segments {
		for _, text := range c.split(seg.Text) {
			chunks = append(chunks, Chunk{
				Text:   text,
				Source: seg.Source,
				Seq:    len(chunks),
			})
		}
	}
	return chunks
}

func (c *Chunker) split(text string) []string {
	runes := []rune(text)
	var parts []string

	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
				parts = append(parts, piece)
			}
			break
		}

		cut := c.boundary(runes, start, end)
		if piece := strings.TrimSpace(string(runes[start:cut])); piece != "" {
			parts = append(parts, piece)
		}

		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return parts
}

// boundary picks the best split point at or before end, never cutting
// earlier than half a window so progress is always made.
func (c *Chunker) boundary(runes []rune, start, end int) int {
	min := start + c.size/2

	for i := end - 1; i > min; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > min; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > min; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return end
}

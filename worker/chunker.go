package worker

import (
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xynenyx/fundwire/core"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 512
	// DefaultChunkOverlap is how many characters adjacent chunks share.
	DefaultChunkOverlap = 50
)

// Chunker splits document text into overlapping chunks sized for embedding.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker. Non-positive size or negative overlap fall
// back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

// Split chunks document text. Chunk indices are assigned in document order;
// vectors are left empty for the processor to fill in.
func (c *Chunker) Split(text string) ([]*core.Chunk, error) {
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	chunks := make([]*core.Chunk, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			continue
		}
		chunks = append(chunks, &core.Chunk{
			Index:      i,
			Content:    part,
			TokenCount: estimateTokens(part),
		})
	}
	return chunks, nil
}

// estimateTokens approximates the token count at four characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

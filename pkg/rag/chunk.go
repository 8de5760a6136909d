package rag

import "strings"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200

	// tokensPerWord approximates model tokens from whitespace-split
	// words. Cheap and a few percent off either way, which only
	// affects prompt sizing, not correctness.
	tokensPerWord = 1.3
)

// chunkText splits text into overlapping windows of size tokens with
// the given overlap, where a token is a whitespace-delimited word.
// The windows cover the whole input; each non-final window shares
// exactly `overlap` tokens with the next.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		part := strings.Join(tokens[start:end], " ")
		if part != "" {
			chunks = append(chunks, part)
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// estimateTokens approximates the model token count of text.
func estimateTokens(text string) float64 {
	return float64(len(strings.Fields(text))) * tokensPerWord
}

package rag

import (
	"strings"
	"testing"
)

func TestChunkTextShortInputSingleChunk(t *testing.T) {
	chunks := chunkText("one two three", 1000, 200)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0] != "one two three" {
		t.Fatalf("chunk = %q", chunks[0])
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	if chunks := chunkText("   ", 1000, 200); len(chunks) != 0 {
		t.Fatalf("chunks = %d, want 0", len(chunks))
	}
}

func TestChunkTextOverlapAndCoverage(t *testing.T) {
	words := make([]string, 250)
	for i := range words {
		words[i] = "w" + strings.Repeat("x", i%7)
	}
	text := strings.Join(words, " ")

	chunks := chunkText(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Every word must appear in at least one chunk, in order.
	rejoined := strings.Fields(strings.Join(chunks, " "))
	if len(rejoined) < len(words) {
		t.Fatalf("rejoined words = %d, want >= %d", len(rejoined), len(words))
	}
	// Consecutive chunks share the overlap region.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		cur := strings.Fields(chunks[i])
		tail := strings.Join(prev[len(prev)-20:], " ")
		head := strings.Join(cur[:20], " ")
		if tail != head {
			t.Fatalf("chunk %d overlap mismatch:\n tail %q\n head %q", i, tail, head)
		}
	}
	// Last chunk ends with the last word.
	last := strings.Fields(chunks[len(chunks)-1])
	if last[len(last)-1] != words[len(words)-1] {
		t.Fatalf("last chunk does not reach end of text")
	}
}

func TestChunkTextNoDuplicateFinalChunk(t *testing.T) {
	words := make([]string, 180)
	for i := range words {
		words[i] = "word"
	}
	chunks := chunkText(strings.Join(words, " "), 100, 20)
	// 180 words, step 80: windows [0:100], [80:180]. No third window.
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(""); got != 0 {
		t.Fatalf("estimateTokens(empty) = %v, want 0", got)
	}
	// 10 words at 1.3 tokens per word.
	text := strings.Repeat("word ", 10)
	if got := estimateTokens(text); got < 12.9 || got > 13.1 {
		t.Fatalf("estimateTokens = %f, want ~13", got)
	}
}

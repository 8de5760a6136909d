package toolcall

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// fencedBlock is one ```-delimited region of the response text.
// lines[start:end] covers the fence markers themselves, so stripping a
// block removes its delimiters too. An unterminated fence runs to the
// end of the text.
type fencedBlock struct {
	info  string
	body  string
	start int
	end   int
}

// scanFencedBlocks walks the text line by line, pairing fence openers
// with the next closing fence. This replaces regex slicing so nested
// or malformed fences degrade predictably.
func scanFencedBlocks(lines []string) []fencedBlock {
	var blocks []fencedBlock
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "```") {
			continue
		}
		block := fencedBlock{
			info:  strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))),
			start: i,
			end:   len(lines),
		}
		var body []string
		closed := false
		for j := i + 1; j < len(lines); j++ {
			if strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
				block.end = j + 1
				i = j
				closed = true
				break
			}
			body = append(body, lines[j])
		}
		if !closed {
			i = len(lines)
		}
		block.body = strings.Join(body, "\n")
		blocks = append(blocks, block)
	}
	return blocks
}

// Extract parses the LLM response for recognized tool-call blocks, in
// order of appearance. Blocks that fail to parse, or whose type is
// unknown, are silently skipped: a partially broken response still
// yields whatever valid calls it contains.
func Extract(responseText string) []ToolCall {
	lines := strings.Split(responseText, "\n")
	var calls []ToolCall
	for _, block := range scanFencedBlocks(lines) {
		if block.info != "json" {
			continue
		}
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(block.body), &probe); err != nil {
			continue
		}
		call := ToolCall{ID: uuid.NewString(), Kind: Kind(probe.Type)}
		switch call.Kind {
		case KindDiagram:
			var d Diagram
			if err := json.Unmarshal([]byte(block.body), &d); err != nil {
				continue
			}
			call.Repaired = validateDiagram(&d)
			call.Diagram = &d
		case KindFlashcards:
			var f FlashcardSet
			if err := json.Unmarshal([]byte(block.body), &f); err != nil {
				continue
			}
			call.Repaired = validateFlashcards(&f)
			call.Flashcards = &f
		case KindQuiz:
			var q Quiz
			if err := json.Unmarshal([]byte(block.body), &q); err != nil {
				continue
			}
			call.Repaired = validateQuiz(&q)
			call.Quiz = &q
		default:
			// Unknown block types are forward-compatible, not errors.
			continue
		}
		calls = append(calls, call)
	}
	return calls
}

// Strip removes every fenced block (recognized or not) from the
// response and collapses the leftover blank-line runs, so the
// user-facing text never shows raw markup.
func Strip(responseText string) string {
	lines := strings.Split(responseText, "\n")
	blocks := scanFencedBlocks(lines)
	if len(blocks) == 0 {
		return strings.TrimSpace(responseText)
	}
	drop := make([]bool, len(lines))
	for _, block := range blocks {
		for i := block.start; i < block.end && i < len(lines); i++ {
			drop[i] = true
		}
	}
	var kept []string
	for i, line := range lines {
		if !drop[i] {
			kept = append(kept, line)
		}
	}
	return collapseBlankLines(strings.Join(kept, "\n"))
}

// collapseBlankLines reduces runs of blank lines to a single blank
// line and trims the edges.
func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

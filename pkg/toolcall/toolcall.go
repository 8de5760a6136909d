// Package toolcall extracts structured payloads (diagrams, flashcard
// sets, quizzes) from free-text LLM responses and repairs them against
// their schemas. Parsing is best-effort: broken blocks are skipped or
// defaulted, never escalated as errors.
package toolcall

import "encoding/json"

// Kind tags a tool-call variant. The values match the type field the
// model is instructed to emit.
type Kind string

const (
	KindDiagram    Kind = "mermaid_diagram"
	KindFlashcards Kind = "flashcards"
	KindQuiz       Kind = "quiz"
)

// Diagram is a Mermaid graph definition.
type Diagram struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// Card is one flashcard.
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// FlashcardSet is an ordered list of cards.
type FlashcardSet struct {
	Title       string `json:"title"`
	Cards       []Card `json:"cards"`
	Description string `json:"description"`
}

// Question is one multiple-choice quiz question. CorrectAnswer is
// always a member of Options after validation.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Quiz is an ordered list of questions.
type Quiz struct {
	Title       string     `json:"title"`
	Questions   []Question `json:"questions"`
	Description string     `json:"description"`
}

// ToolCall is one extracted payload. Exactly one of Diagram,
// Flashcards, Quiz is set, matching Kind. Repaired records whether
// validation had to synthesize or replace any field; the orchestrator
// uses it to decide on a corrective retry.
type ToolCall struct {
	ID         string
	Kind       Kind
	Diagram    *Diagram
	Flashcards *FlashcardSet
	Quiz       *Quiz
	Repaired   bool
}

// MarshalJSON emits the wire shape the UI consumes:
// {"id", "type", "data"} with the variant fields inside data.
func (t ToolCall) MarshalJSON() ([]byte, error) {
	var data any
	switch t.Kind {
	case KindDiagram:
		data = t.Diagram
	case KindFlashcards:
		data = t.Flashcards
	case KindQuiz:
		data = t.Quiz
	}
	return json.Marshal(struct {
		ID   string `json:"id"`
		Type Kind   `json:"type"`
		Data any    `json:"data"`
	}{ID: t.ID, Type: t.Kind, Data: data})
}

// NeedsRetry reports whether any extracted call required structural
// repair. Pure function of the list so the retry decision is testable
// apart from any network call.
func NeedsRetry(calls []ToolCall) bool {
	for _, call := range calls {
		if call.Repaired {
			return true
		}
	}
	return false
}

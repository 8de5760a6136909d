package toolcall

import "strings"

// Defaults synthesized for missing or invalid fields. Repair keeps a
// degraded payload renderable instead of dropping it.
const (
	defaultDiagramTitle       = "Default title"
	defaultDiagramDescription = "Default description"
	defaultDiagramContent     = "graph TD\n    A[\"Start\"] --> B[\"End\"]"
	defaultFlashcardsTitle    = "Flashcard Set"
	defaultQuizTitle          = "Quiz"
)

// diagramPrologues are the graph syntaxes the renderer accepts. A body
// that starts with anything else is replaced wholesale with the
// trivial two-node default.
var diagramPrologues = []string{"graph TD", "graph LR", "flowchart TD"}

func validateDiagram(d *Diagram) (repaired bool) {
	if strings.TrimSpace(d.Title) == "" {
		d.Title = defaultDiagramTitle
		repaired = true
	}
	if strings.TrimSpace(d.Description) == "" {
		d.Description = defaultDiagramDescription
		repaired = true
	}
	if !hasDiagramPrologue(d.Content) {
		d.Content = defaultDiagramContent
		repaired = true
	}
	return repaired
}

func hasDiagramPrologue(content string) bool {
	content = strings.TrimSpace(content)
	for _, prologue := range diagramPrologues {
		if strings.HasPrefix(content, prologue) {
			return true
		}
	}
	return false
}

func validateFlashcards(f *FlashcardSet) (repaired bool) {
	if strings.TrimSpace(f.Title) == "" {
		f.Title = defaultFlashcardsTitle
		repaired = true
	}
	if len(f.Cards) == 0 {
		f.Cards = []Card{{Front: "Sample Question", Back: "Sample Answer"}}
		repaired = true
	}
	for i := range f.Cards {
		if strings.TrimSpace(f.Cards[i].Front) == "" {
			f.Cards[i].Front = "Question"
			repaired = true
		}
		if strings.TrimSpace(f.Cards[i].Back) == "" {
			f.Cards[i].Back = "Answer"
			repaired = true
		}
	}
	return repaired
}

func validateQuiz(q *Quiz) (repaired bool) {
	if strings.TrimSpace(q.Title) == "" {
		q.Title = defaultQuizTitle
		repaired = true
	}
	if len(q.Questions) == 0 {
		q.Questions = []Question{{
			Question:      "Sample Question",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Explanation:   "Sample explanation",
		}}
		repaired = true
	}
	for i := range q.Questions {
		question := &q.Questions[i]
		if strings.TrimSpace(question.Question) == "" {
			question.Question = "Question"
			repaired = true
		}
		if len(question.Options) == 0 {
			question.Options = []string{"A", "B", "C", "D"}
			repaired = true
		}
		// Downstream rendering assumes the correct answer is one of
		// the options; coerce to the first option when it is not.
		if !containsOption(question.Options, question.CorrectAnswer) {
			question.CorrectAnswer = question.Options[0]
			repaired = true
		}
		if strings.TrimSpace(question.Explanation) == "" {
			question.Explanation = "Explanation"
			repaired = true
		}
	}
	return repaired
}

func containsOption(options []string, answer string) bool {
	for _, option := range options {
		if option == answer {
			return true
		}
	}
	return false
}

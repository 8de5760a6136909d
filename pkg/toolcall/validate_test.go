package toolcall

import (
	"strings"
	"testing"
)

func TestValidateDiagramDefaults(t *testing.T) {
	d := Diagram{Content: "pie chart stuff"}
	if !validateDiagram(&d) {
		t.Fatalf("expected repair for empty fields")
	}
	if d.Title != "Default title" {
		t.Fatalf("title = %q", d.Title)
	}
	if d.Description != "Default description" {
		t.Fatalf("description = %q", d.Description)
	}
	if !strings.HasPrefix(d.Content, "graph TD") {
		t.Fatalf("content not replaced: %q", d.Content)
	}
}

func TestValidateDiagramAcceptsPrologues(t *testing.T) {
	for _, prologue := range []string{"graph TD", "graph LR", "flowchart TD"} {
		d := Diagram{
			Title:       "T",
			Description: "D",
			Content:     prologue + "\n    A --> B",
		}
		if validateDiagram(&d) {
			t.Fatalf("prologue %q flagged as repaired", prologue)
		}
		if !strings.HasPrefix(d.Content, prologue) {
			t.Fatalf("content rewritten for valid prologue %q", prologue)
		}
	}
}

func TestValidateFlashcardsDefaults(t *testing.T) {
	f := FlashcardSet{}
	if !validateFlashcards(&f) {
		t.Fatalf("expected repair for empty set")
	}
	if f.Title != "Flashcard Set" {
		t.Fatalf("title = %q", f.Title)
	}
	if len(f.Cards) != 1 || f.Cards[0].Front != "Sample Question" || f.Cards[0].Back != "Sample Answer" {
		t.Fatalf("cards = %+v", f.Cards)
	}
}

func TestValidateFlashcardsFillsBlankSides(t *testing.T) {
	f := FlashcardSet{
		Title: "Terms",
		Cards: []Card{{Front: "ATP", Back: ""}, {Front: "", Back: "Energy"}},
	}
	if !validateFlashcards(&f) {
		t.Fatalf("expected repair for blank card sides")
	}
	if f.Cards[0].Back != "Answer" || f.Cards[1].Front != "Question" {
		t.Fatalf("cards = %+v", f.Cards)
	}
}

func TestValidateQuizDefaults(t *testing.T) {
	q := Quiz{}
	if !validateQuiz(&q) {
		t.Fatalf("expected repair for empty quiz")
	}
	if q.Title != "Quiz" {
		t.Fatalf("title = %q", q.Title)
	}
	if len(q.Questions) != 1 {
		t.Fatalf("questions = %+v", q.Questions)
	}
	question := q.Questions[0]
	if len(question.Options) != 4 || question.CorrectAnswer != "A" {
		t.Fatalf("question = %+v", question)
	}
}

func TestValidateQuizCoercesCorrectAnswer(t *testing.T) {
	q := Quiz{
		Title: "Check",
		Questions: []Question{{
			Question:      "Which organelle makes ATP?",
			Options:       []string{"Mitochondria", "Nucleus"},
			CorrectAnswer: "Ribosome",
			Explanation:   "energy production",
		}},
	}
	if !validateQuiz(&q) {
		t.Fatalf("expected repair for out-of-options answer")
	}
	if q.Questions[0].CorrectAnswer != "Mitochondria" {
		t.Fatalf("correct answer = %q, want first option", q.Questions[0].CorrectAnswer)
	}
}

func TestValidateQuizWellFormed(t *testing.T) {
	q := Quiz{
		Title: "Check",
		Questions: []Question{{
			Question:      "Q?",
			Options:       []string{"x", "y"},
			CorrectAnswer: "y",
			Explanation:   "because",
		}},
	}
	if validateQuiz(&q) {
		t.Fatalf("well-formed quiz flagged as repaired")
	}
}

func TestNeedsRetry(t *testing.T) {
	clean := []ToolCall{{Kind: KindQuiz}, {Kind: KindDiagram}}
	if NeedsRetry(clean) {
		t.Fatalf("clean calls should not need retry")
	}
	if !NeedsRetry([]ToolCall{{Kind: KindQuiz}, {Kind: KindDiagram, Repaired: true}}) {
		t.Fatalf("repaired call should trigger retry")
	}
	if NeedsRetry(nil) {
		t.Fatalf("no calls should not need retry")
	}
}

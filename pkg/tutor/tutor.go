// Package tutor orchestrates a single chat turn: retrieve context from
// the student's materials, call the language model, extract and repair
// structured components, and retry once when a component came back
// malformed.
package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"claraai/pkg/ai"
	"claraai/pkg/domain"
	"claraai/pkg/toolcall"
)

// ContextProvider supplies retrieval-augmented context for a query.
// *rag.Engine satisfies it.
type ContextProvider interface {
	GetContext(ctx context.Context, query, userID, folderID string, maxTokens int) string
}

// FileLister optionally enumerates the student's uploaded files so
// the prompt can mention what material is available. *rag.Engine
// satisfies it.
type FileLister interface {
	ListFiles(ctx context.Context, userID, folderID string) ([]domain.FileRecord, error)
}

const (
	defaultMaxAttempts      = 2
	defaultMaxTokens        = 2000
	defaultTemperature      = 0.7
	defaultHistoryLimit     = 20
	defaultContextMaxTokens = 2000
)

// Config carries the orchestrator's dependencies and tuning knobs.
type Config struct {
	Retriever     ContextProvider
	Generator     ai.ChatGenerator
	Conversations ConversationStore

	// MaxAttempts bounds generation attempts per turn, including the
	// first. Defaults to 2: one retry after a repaired component.
	MaxAttempts int
	// MaxTokens caps the model's output per attempt.
	MaxTokens int
	// Temperature for generation.
	Temperature float64
	// HistoryLimit is how many prior messages are replayed to the model.
	HistoryLimit int
	// ContextMaxTokens is the retrieval context budget.
	ContextMaxTokens int
}

// Tutor runs chat turns for students.
type Tutor struct {
	retriever        ContextProvider
	generator        ai.ChatGenerator
	conversations    ConversationStore
	maxAttempts      int
	maxTokens        int
	temperature      float64
	historyLimit     int
	contextMaxTokens int
}

// New builds a Tutor, applying defaults for unset knobs.
func New(cfg Config) (*Tutor, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("tutor: generator is required")
	}
	if cfg.Conversations == nil {
		cfg.Conversations = NewMemoryConversationStore()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.ContextMaxTokens <= 0 {
		cfg.ContextMaxTokens = defaultContextMaxTokens
	}
	return &Tutor{
		retriever:        cfg.Retriever,
		generator:        cfg.Generator,
		conversations:    cfg.Conversations,
		maxAttempts:      cfg.MaxAttempts,
		maxTokens:        cfg.MaxTokens,
		temperature:      cfg.Temperature,
		historyLimit:     cfg.HistoryLimit,
		contextMaxTokens: cfg.ContextMaxTokens,
	}, nil
}

// TurnResult is the outcome of one chat turn. It is always populated:
// when the model fails outright, Success is false and Response carries
// an apologetic fallback rather than an empty string.
type TurnResult struct {
	Success     bool                `json:"success"`
	Response    string              `json:"response"`
	ToolCalls   []toolcall.ToolCall `json:"tool_calls"`
	ContextUsed bool                `json:"context_used"`
	Timestamp   time.Time           `json:"timestamp"`
	Error       string              `json:"error,omitempty"`
}

// Respond runs one turn of the conversation. Failures are folded into
// the result so callers always have something to show the student.
func (t *Tutor) Respond(ctx context.Context, userID, conversationID, message, folderID string) TurnResult {
	result := TurnResult{Timestamp: time.Now().UTC()}

	docContext := ""
	fileSummary := ""
	if t.retriever != nil {
		docContext = t.retriever.GetContext(ctx, message, userID, folderID, t.contextMaxTokens)
		fileSummary = t.fileSummary(ctx, userID, folderID)
	}
	result.ContextUsed = docContext != ""

	history, err := t.conversations.History(ctx, conversationID, t.historyLimit)
	if err != nil {
		slog.Warn("conversation history unavailable, starting fresh",
			"conversation_id", conversationID, "error", err)
		history = nil
	}

	messages := t.buildMessages(history, fileSummary, docContext, message)

	var (
		response string
		calls    []toolcall.ToolCall
		lastErr  error
	)
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		response, lastErr = t.generator.Complete(ctx, messages, t.maxTokens, t.temperature)
		if lastErr != nil {
			slog.Error("chat generation failed",
				"conversation_id", conversationID, "attempt", attempt, "error", lastErr)
			break
		}
		calls = toolcall.Extract(response)
		if !toolcall.NeedsRetry(calls) || attempt == t.maxAttempts {
			break
		}
		slog.Info("components needed repair, retrying",
			"conversation_id", conversationID, "attempt", attempt, "components", len(calls))
		messages = append(messages,
			ai.ChatMessage{Role: "assistant", Content: response},
			ai.ChatMessage{Role: "user", Content: correctionMessage},
		)
	}

	if lastErr != nil {
		result.Response = fallbackResponse
		result.ToolCalls = []toolcall.ToolCall{}
		result.Error = lastErr.Error()
		return result
	}

	result.Success = true
	result.Response = toolcall.Strip(response)
	if calls == nil {
		calls = []toolcall.ToolCall{}
	}
	result.ToolCalls = calls

	// History stores the stripped text; replaying fenced JSON blocks
	// into later prompts would invite the model to copy them.
	now := time.Now().UTC()
	if err := t.conversations.Append(ctx, conversationID,
		Message{Role: "user", Content: message, CreatedAt: now},
		Message{Role: "assistant", Content: result.Response, CreatedAt: now},
	); err != nil {
		slog.Warn("failed to persist conversation turn",
			"conversation_id", conversationID, "error", err)
	}
	return result
}

// ClearConversation discards stored history for a conversation.
func (t *Tutor) ClearConversation(ctx context.Context, conversationID string) error {
	return t.conversations.Clear(ctx, conversationID)
}

// fileSummary names the student's uploaded files so the model knows
// what material exists even when retrieval found nothing relevant.
// Failures are absorbed; the summary is an enhancement.
func (t *Tutor) fileSummary(ctx context.Context, userID, folderID string) string {
	lister, ok := t.retriever.(FileLister)
	if !ok {
		return ""
	}
	files, err := lister.ListFiles(ctx, userID, folderID)
	if err != nil || len(files) == 0 {
		return ""
	}
	const maxListed = 20
	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, fmt.Sprintf("%s (%s)", file.Name, file.Type))
		if len(names) == maxListed {
			break
		}
	}
	return "The student has uploaded the following materials: " + strings.Join(names, ", ")
}

func (t *Tutor) buildMessages(history []Message, fileSummary, docContext, userMessage string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+4)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: systemPrompt})
	if fileSummary != "" {
		messages = append(messages, ai.ChatMessage{Role: "system", Content: fileSummary})
	}
	if docContext != "" {
		messages = append(messages, ai.ChatMessage{
			Role:    "system",
			Content: "Relevant excerpts from the student's uploaded materials:\n\n" + docContext,
		})
	}
	for _, msg := range history {
		role := msg.Role
		if role != "user" && role != "assistant" {
			continue
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: msg.Content})
	}
	return append(messages, ai.ChatMessage{Role: "user", Content: userMessage})
}

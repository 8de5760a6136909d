package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient calls any OpenAI-compatible /v1 endpoint for chat
// completions and embeddings. Works with the hosted OpenAI API as well
// as vLLM, LiteLLM, LocalAI, OpenRouter and other compatible servers.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIClient builds a client. baseURL should include the /v1
// prefix; empty means the hosted OpenAI API. apiKey can be empty for
// local models that do not require authentication.
func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// OpenAIGenerator implements ChatGenerator with a fixed model.
type OpenAIGenerator struct {
	client *OpenAIClient
	model  string
}

// NewOpenAIGenerator builds an OpenAI-compatible ChatGenerator.
func NewOpenAIGenerator(client *OpenAIClient, model string) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, model: strings.TrimSpace(model)}
}

// Complete implements ChatGenerator using the chat completions API.
func (g *OpenAIGenerator) Complete(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float64) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("openai generation model required")
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("chat messages required")
	}
	reqBody := oaiChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: temperature,
	}
	if maxTokens > 0 {
		reqBody.MaxTokens = maxTokens
	}
	var chatResp oaiChatResponse
	if err := g.client.doJSON(ctx, "/chat/completions", reqBody, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai api")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from openai api")
	}
	return text, nil
}

// OpenAIEmbedder implements Embedder/BatchEmbedder with a fixed model
// and dimension.
type OpenAIEmbedder struct {
	client     *OpenAIClient
	model      string
	dimensions int
}

// NewOpenAIEmbedder builds an OpenAI-compatible embedder.
func NewOpenAIEmbedder(client *OpenAIClient, model string, dimensions int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: strings.TrimSpace(model), dimensions: dimensions}
}

// EmbedText returns the embedding for one text.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text, taskType string) ([]float32, error) {
	out, err := e.EmbedTexts(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedTexts returns embeddings for multiple texts in a single call.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if e.model == "" {
		return nil, fmt.Errorf("openai embedding model required")
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedding texts required")
	}
	reqBody := oaiEmbedRequest{
		Model: e.model,
		Input: texts,
	}
	if e.dimensions > 0 {
		reqBody.Dimensions = e.dimensions
	}
	var resp oaiEmbedResponse
	if err := e.client.doJSON(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embedding index out of range: %d", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (c *OpenAIClient) doJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("openai api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("openai api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai decode: %w", err)
	}
	return nil
}

// OpenAI-compatible request/response types.

type oaiChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

type oaiEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type oaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

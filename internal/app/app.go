// Package app wires configuration into the service's components: AI
// provider clients, the vector index, the retrieval engine, the tutor,
// and the optional Redis and MinIO backends.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"claraai/internal/config"
	"claraai/internal/ratelimit"
	"claraai/pkg/ai"
	"claraai/pkg/rag"
	"claraai/pkg/storage"
	"claraai/pkg/tutor"
	"claraai/pkg/vectorstore"
)

// App bundles the constructed components for the HTTP layer.
type App struct {
	Engine  *rag.Engine
	Tutor   *tutor.Tutor
	Archive storage.UploadArchive
	Limiter *ratelimit.FixedWindowLimiter

	redisClient *redis.Client
}

// New builds the application from config. A missing or unreachable
// Postgres falls back to an in-memory index so the tutor stays usable;
// the downgrade is logged loudly because uploads then vanish on
// restart.
func New(cfg config.FileConfig) (*App, error) {
	embedder, generator, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	index := buildIndex(cfg)

	engine, err := rag.NewEngine(rag.Config{
		Embedder:     embedder,
		Index:        index,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		EmbeddingDim: cfg.EmbeddingDim,
		TopK:         cfg.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("init retrieval engine: %w", err)
	}

	app := &App{Engine: engine}

	var conversations tutor.ConversationStore
	if cfg.RedisAddr != "" {
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		conversations = tutor.NewRedisConversationStore(app.redisClient)
	} else {
		conversations = tutor.NewMemoryConversationStore()
	}

	app.Tutor, err = tutor.New(tutor.Config{
		Retriever:        engine,
		Generator:        generator,
		Conversations:    conversations,
		MaxTokens:        cfg.MaxTokens,
		Temperature:      cfg.Temperature,
		HistoryLimit:     cfg.HistoryLimit,
		ContextMaxTokens: cfg.ContextMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("init tutor: %w", err)
	}

	if cfg.RequestsPerMinute > 0 {
		app.Limiter, err = ratelimit.NewFixedWindowLimiter(app.redisClient, "clara:ratelimit", cfg.RequestsPerMinute, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init rate limiter: %w", err)
		}
	}

	if cfg.MinioEndpoint != "" {
		app.Archive, err = storage.NewMinioArchive(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init upload archive: %w", err)
		}
	}

	return app, nil
}

// Close releases long-lived connections.
func (a *App) Close() error {
	if a.redisClient != nil {
		return a.redisClient.Close()
	}
	return nil
}

func buildProvider(cfg config.FileConfig) (ai.Embedder, ai.ChatGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		client := ai.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
		return ai.NewOpenAIEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDim),
			ai.NewOpenAIGenerator(client, cfg.GenerationModel), nil
	case "gemini":
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return ai.NewGeminiEmbedder(client, cfg.EmbeddingModel),
			ai.NewGeminiGenerator(client, cfg.GenerationModel), nil
	case "ollama":
		ollama := ai.NewOllamaClient(cfg.OllamaBaseURL)
		embedder := ai.NewOllamaEmbedder(ollama, cfg.EmbeddingModel, cfg.EmbeddingDim)
		// Ollama serves embeddings only; generation goes through its
		// OpenAI-compatible endpoint.
		client := ai.NewOpenAIClient(strings.TrimRight(cfg.OllamaBaseURL, "/")+"/v1", "")
		return embedder, ai.NewOpenAIGenerator(client, cfg.GenerationModel), nil
	default:
		return nil, nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func buildIndex(cfg config.FileConfig) vectorstore.Index {
	if cfg.DatabaseURL == "" {
		slog.Warn("no databaseURL configured, using in-memory vector index; uploads will not survive restarts")
		return vectorstore.NewMemoryIndex()
	}
	timeout := time.Duration(cfg.InitTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	index, err := vectorstore.NewGormIndex(ctx, cfg.DatabaseURL, vectorstore.WithEmbeddingDim(cfg.EmbeddingDim))
	if err != nil {
		slog.Warn("vector index unavailable, degrading to in-memory index; uploads will not survive restarts",
			"timeout", timeout, "error", err)
		return vectorstore.NewMemoryIndex()
	}
	return index
}

package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"claraai/pkg/ai"
	"claraai/pkg/domain"
	"claraai/pkg/vectorstore"
)

const (
	defaultTopK             = 5
	defaultMaxContextTokens = 2000
	defaultEmbedBatchSize   = 100
	defaultEmbedConcurrency = 2

	// listScanLimit bounds metadata-only scans for file/folder
	// listings and cascade deletes.
	listScanLimit = 1000

	embedTaskDocument = "RETRIEVAL_DOCUMENT"
	embedTaskQuery    = "RETRIEVAL_QUERY"
)

// Config holds construction parameters for the Engine.
type Config struct {
	Embedder         ai.Embedder
	Index            vectorstore.Index
	ChunkSize        int
	ChunkOverlap     int
	EmbeddingDim     int
	TopK             int
	EmbedBatchSize   int
	EmbedConcurrency int
}

// Engine is the RAG core: document ingestion into a namespaced vector
// index, and query-time context retrieval out of it.
type Engine struct {
	embedder         ai.Embedder
	index            vectorstore.Index
	chunkSize        int
	chunkOverlap     int
	embedDim         int
	topK             int
	embedBatchSize   int
	embedConcurrency int
}

// NewEngine constructs the engine. Index may be nil when the store
// backend failed to initialize; ingestion then reports store errors
// and retrieval degrades to empty context.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	chunkOverlap := cfg.ChunkOverlap
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}
	embedDim := cfg.EmbeddingDim
	if embedDim <= 0 {
		embedDim = 1536
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	concurrency := cfg.EmbedConcurrency
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}
	return &Engine{
		embedder:         cfg.Embedder,
		index:            cfg.Index,
		chunkSize:        chunkSize,
		chunkOverlap:     chunkOverlap,
		embedDim:         embedDim,
		topK:             topK,
		embedBatchSize:   batchSize,
		embedConcurrency: concurrency,
	}, nil
}

// IngestResult reports a successful ingestion.
type IngestResult struct {
	FileID          string `json:"fileId"`
	Filename        string `json:"filename"`
	ChunksProcessed int    `json:"chunksProcessed"`
}

// IngestFile extracts, chunks, embeds, and stores one uploaded file in
// the user's namespace. Failures come back as the sentinel errors of
// this package, wrapped with detail.
//
// The duplicate check and the upsert are not atomic: two concurrent
// uploads of identical content by the same user can both pass the
// check and double-store. Accepted limitation; see DESIGN.md.
func (e *Engine) IngestFile(ctx context.Context, data []byte, filename, userID, folderID string) (IngestResult, error) {
	if e.index == nil {
		return IngestResult{}, fmt.Errorf("%w: no backend", ErrStoreFailure)
	}
	fileType := DetectFileType(filename)
	content := extractContent(data, filename, fileType)
	if strings.TrimSpace(content) == "" {
		return IngestResult{}, ErrEmptyContent
	}

	hash := sha256.Sum256([]byte(content))
	contentHash := hex.EncodeToString(hash[:])
	namespace := vectorstore.Namespace(userID)

	existing, err := e.index.Query(ctx, namespace, nil, 1, vectorstore.Filter{"content_hash": contentHash})
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: duplicate check: %v", ErrStoreFailure, err)
	}
	if len(existing) > 0 {
		return IngestResult{}, ErrDuplicateFile
	}

	chunks := chunkText(content, e.chunkSize, e.chunkOverlap)
	if len(chunks) == 0 {
		return IngestResult{}, ErrEmptyContent
	}

	embeddings, err := e.embedChunks(ctx, chunks)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", ErrEmbeddingFailure, err)
	}

	fileID := uuid.NewString()
	uploadedAt := time.Now().UTC().Format(time.RFC3339)
	records := make([]vectorstore.Record, 0, len(chunks))
	for i, chunk := range chunks {
		metadata := map[string]any{
			"user_id":           userID,
			"file_id":           fileID,
			"chunk_index":       i,
			"original_filename": filename,
			"file_type":         string(fileType),
			"file_size":         len(content),
			"content_hash":      contentHash,
			"chunk_content":     chunk,
			"uploaded_at":       uploadedAt,
			"total_chunks":      len(chunks),
		}
		if folderID != "" {
			metadata["folder_id"] = folderID
		}
		records = append(records, vectorstore.Record{
			ID:       uuid.NewString(),
			Values:   embeddings[i],
			Metadata: metadata,
		})
	}
	if err := e.index.Upsert(ctx, namespace, records); err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	slog.Info("file ingested", "file", filename, "user", userID, "chunks", len(chunks))
	return IngestResult{FileID: fileID, Filename: filename, ChunksProcessed: len(chunks)}, nil
}

// embedChunks embeds all chunk texts, batched to bound request sizes
// and run with limited concurrency. Output order matches input order.
func (e *Engine) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.embedConcurrency)
	for start := 0; start < len(chunks); start += e.embedBatchSize {
		end := start + e.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			batch := chunks[start:end]
			var (
				out [][]float32
				err error
			)
			if batcher, ok := e.embedder.(ai.BatchEmbedder); ok {
				out, err = batcher.EmbedTexts(gctx, batch, embedTaskDocument)
			} else {
				out = make([][]float32, 0, len(batch))
				for _, text := range batch {
					var vec []float32
					vec, err = e.embedder.EmbedText(gctx, text, embedTaskDocument)
					if err != nil {
						break
					}
					out = append(out, vec)
				}
			}
			if err != nil {
				return err
			}
			if len(out) != len(batch) {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(out), len(batch))
			}
			for i, vec := range out {
				if len(vec) == 0 {
					return fmt.Errorf("empty embedding at index %d", start+i)
				}
				if e.embedDim > 0 && len(vec) != e.embedDim {
					return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), e.embedDim)
				}
				embeddings[start+i] = vec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Search returns the topK most relevant stored chunks for the query,
// descending by cosine similarity. Equal scores keep backend order.
func (e *Engine) Search(ctx context.Context, query, userID, folderID string, topK int) ([]domain.SearchResult, error) {
	if e.index == nil {
		return nil, vectorstore.ErrUnavailable
	}
	if topK <= 0 {
		topK = e.topK
	}
	queryEmbedding, err := e.embedder.EmbedText(ctx, query, embedTaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	filter := vectorstore.Filter{"user_id": userID}
	if folderID != "" {
		filter["folder_id"] = folderID
	}
	matches, err := e.index.Query(ctx, vectorstore.Namespace(userID), queryEmbedding, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(matches))
	for _, match := range matches {
		results = append(results, domain.SearchResult{
			ChunkID:    match.ID,
			Content:    metaString(match.Metadata, "chunk_content"),
			Score:      match.Score,
			SourceFile: metaStringDefault(match.Metadata, "original_filename", "Unknown"),
			Metadata:   match.Metadata,
		})
	}
	return results, nil
}

// GetContext assembles a token-budgeted context string for the query.
// Results are taken whole, in ranking order, each attributed to its
// source file; any failure is absorbed into an empty string because
// context is an optional enhancement of the tutoring flow.
func (e *Engine) GetContext(ctx context.Context, query, userID, folderID string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = defaultMaxContextTokens
	}
	results, err := e.Search(ctx, query, userID, folderID, e.topK)
	if err != nil {
		slog.Warn("context retrieval failed", "user", userID, "err", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	var used float64
	for _, result := range results {
		cost := estimateTokens(result.Content)
		if used+cost > float64(maxTokens) {
			break
		}
		parts = append(parts, fmt.Sprintf("From %s:\n%s", result.SourceFile, result.Content))
		used += cost
	}
	return strings.Join(parts, "\n\n")
}

// ListFiles materializes file records from chunk metadata, optionally
// scoped to one folder.
func (e *Engine) ListFiles(ctx context.Context, userID, folderID string) ([]domain.FileRecord, error) {
	if e.index == nil {
		return nil, vectorstore.ErrUnavailable
	}
	filter := vectorstore.Filter{"user_id": userID}
	if folderID != "" {
		filter["folder_id"] = folderID
	}
	matches, err := e.index.Query(ctx, vectorstore.Namespace(userID), nil, listScanLimit, filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	seen := map[string]bool{}
	files := make([]domain.FileRecord, 0)
	for _, match := range matches {
		fileID := metaString(match.Metadata, "file_id")
		if fileID == "" || seen[fileID] {
			continue
		}
		seen[fileID] = true
		files = append(files, domain.FileRecord{
			ID:         fileID,
			UserID:     userID,
			Name:       metaStringDefault(match.Metadata, "original_filename", "Unknown"),
			Type:       domain.FileType(metaStringDefault(match.Metadata, "file_type", "unknown")),
			SizeBytes:  metaInt(match.Metadata, "file_size"),
			UploadedAt: metaString(match.Metadata, "uploaded_at"),
			FolderID:   metaString(match.Metadata, "folder_id"),
			ChunkCount: metaInt(match.Metadata, "total_chunks"),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].UploadedAt < files[j].UploadedAt })
	return files, nil
}

// DeleteFile removes every chunk of the file from the user's
// namespace and returns how many were deleted.
func (e *Engine) DeleteFile(ctx context.Context, fileID, userID string) (int, error) {
	if e.index == nil {
		return 0, vectorstore.ErrUnavailable
	}
	namespace := vectorstore.Namespace(userID)
	matches, err := e.index.Query(ctx, namespace, nil, listScanLimit, vectorstore.Filter{"file_id": fileID})
	if err != nil {
		return 0, fmt.Errorf("query index: %w", err)
	}
	if len(matches) == 0 {
		return 0, ErrFileNotFound
	}
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.ID)
	}
	if err := e.index.Delete(ctx, namespace, ids); err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return len(ids), nil
}

// CreateFolder registers a grouping label for the user. Folders live
// in the index as sentinel records so the vector store stays the only
// persistence backend.
func (e *Engine) CreateFolder(ctx context.Context, userID, name, description string) (domain.Folder, error) {
	if e.index == nil {
		return domain.Folder{}, vectorstore.ErrUnavailable
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Folder{}, ErrFolderNameRequired
	}
	folderID := uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)
	record := vectorstore.Record{
		ID:     "folder_" + folderID,
		Values: folderSentinelVector(e.embedDim),
		Metadata: map[string]any{
			"user_id":            userID,
			"folder_id":          folderID,
			"folder_name":        name,
			"folder_description": description,
			"folder_created_at":  createdAt,
			"type":               "folder",
		},
	}
	if err := e.index.Upsert(ctx, vectorstore.Namespace(userID), []vectorstore.Record{record}); err != nil {
		return domain.Folder{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return domain.Folder{
		ID:          folderID,
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   createdAt,
	}, nil
}

// ListFolders returns the user's folders.
func (e *Engine) ListFolders(ctx context.Context, userID string) ([]domain.Folder, error) {
	if e.index == nil {
		return nil, vectorstore.ErrUnavailable
	}
	filter := vectorstore.Filter{"user_id": userID, "type": "folder"}
	matches, err := e.index.Query(ctx, vectorstore.Namespace(userID), nil, listScanLimit, filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	folders := make([]domain.Folder, 0, len(matches))
	for _, match := range matches {
		folderID := metaString(match.Metadata, "folder_id")
		if folderID == "" {
			continue
		}
		folders = append(folders, domain.Folder{
			ID:          folderID,
			UserID:      userID,
			Name:        metaStringDefault(match.Metadata, "folder_name", "Unknown"),
			Description: metaString(match.Metadata, "folder_description"),
			CreatedAt:   metaString(match.Metadata, "folder_created_at"),
		})
	}
	return folders, nil
}

// DeleteFolder deletes the folder and every file in it. Files are
// owned by the user, not the folder, so the cascade enumerates and
// deletes them explicitly rather than detaching them.
func (e *Engine) DeleteFolder(ctx context.Context, folderID, userID string) (int, error) {
	if e.index == nil {
		return 0, vectorstore.ErrUnavailable
	}
	files, err := e.ListFiles(ctx, userID, folderID)
	if err != nil {
		return 0, err
	}
	for _, file := range files {
		if _, err := e.DeleteFile(ctx, file.ID, userID); err != nil {
			return 0, fmt.Errorf("delete file %s: %w", file.ID, err)
		}
	}
	if err := e.index.Delete(ctx, vectorstore.Namespace(userID), []string{"folder_" + folderID}); err != nil {
		return 0, fmt.Errorf("delete folder record: %w", err)
	}
	return len(files), nil
}

// folderSentinelVector is a fixed non-zero vector for folder records;
// some backends reject all-zero vectors and the value is never ranked
// against real text.
func folderSentinelVector(dim int) []float32 {
	vec := make([]float32, dim)
	vec[0] = 1.0
	for i := 1; i < dim; i++ {
		vec[i] = 0.001
	}
	return vec
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}

func metaStringDefault(meta map[string]any, key, fallback string) string {
	if s := metaString(meta, key); s != "" {
		return s
	}
	return fallback
}

func metaInt(meta map[string]any, key string) int {
	if meta == nil {
		return 0
	}
	switch n := meta[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

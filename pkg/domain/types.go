package domain

import "time"

// FileType tags the extractor used for an uploaded document.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeDOCX  FileType = "docx"
	FileTypeDOC   FileType = "doc"
	FileTypeImage FileType = "image"
	FileTypeText  FileType = "txt"
)

// Chunk is a token-bounded slice of a source document, embedded and
// stored independently. Chunks are immutable once written.
type Chunk struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	FileID      string    `json:"fileId"`
	Index       int       `json:"index"`
	Content     string    `json:"content"`
	SourceFile  string    `json:"sourceFile"`
	FileType    FileType  `json:"fileType"`
	ContentHash string    `json:"contentHash"`
	TotalChunks int       `json:"totalChunks"`
	FolderID    string    `json:"folderId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Embedding   []float32 `json:"-"`
}

// FileRecord describes an uploaded file. It is never stored directly;
// it materializes from the metadata of the file's chunks.
type FileRecord struct {
	ID         string   `json:"id"`
	UserID     string   `json:"userId"`
	Name       string   `json:"name"`
	Type       FileType `json:"type"`
	SizeBytes  int      `json:"size"`
	UploadedAt string   `json:"uploadedAt"`
	FolderID   string   `json:"folderId,omitempty"`
	ChunkCount int      `json:"chunksCount"`
}

// Folder groups a user's files.
type Folder struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// SearchResult is one retrieval hit. Higher score means more relevant.
type SearchResult struct {
	ChunkID    string         `json:"chunkId"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	SourceFile string         `json:"sourceFile"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

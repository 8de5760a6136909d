package rag

import "errors"

// Ingestion failure taxonomy. The HTTP layer maps these to structured
// {success:false, error} responses; they never escape as panics.
var (
	// ErrDuplicateFile means the user already stored a file with
	// identical extracted text (content-hash dedup, not filename).
	ErrDuplicateFile = errors.New("file already exists")
	// ErrEmptyContent means extraction produced no usable text.
	ErrEmptyContent = errors.New("no content extracted from file")
	// ErrEmbeddingFailure means the embedding service returned no
	// vectors or the wrong number of them.
	ErrEmbeddingFailure = errors.New("failed to generate embeddings")
	// ErrStoreFailure means the vector store rejected the write.
	ErrStoreFailure = errors.New("vector store write failed")
	// ErrFileNotFound means no chunks exist for the given file id.
	ErrFileNotFound = errors.New("file not found")
	// ErrFolderNameRequired means the folder name was empty after trimming.
	ErrFolderNameRequired = errors.New("folder name required")
)

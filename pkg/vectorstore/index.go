package vectorstore

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no index backend could be initialized.
var ErrUnavailable = errors.New("vector store unavailable")

// Record is one stored vector with its metadata bag.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is one query hit. Higher score means more similar.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Filter restricts matches to records whose metadata contains every
// listed key with an equal value.
type Filter map[string]any

// Index is the gateway contract over an external similarity index.
// All operations are scoped to a namespace; callers never see records
// from another namespace.
//
// A nil query vector requests a metadata-only scan: matches carry a
// zero score and no particular order beyond the backend's own.
type Index interface {
	Upsert(ctx context.Context, namespace string, records []Record) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error)
	Delete(ctx context.Context, namespace string, ids []string) error
}

// Namespace returns the per-user partition name.
func Namespace(userID string) string {
	return "user_" + userID
}

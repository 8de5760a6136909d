package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const defaultEmbeddingDim = 1536

// VectorRecordModel is the persisted row for one embedded chunk (or
// folder marker). Metadata is JSONB so gateway filters map to `@>`
// containment.
type VectorRecordModel struct {
	ID        string          `gorm:"primaryKey"`
	Namespace string          `gorm:"not null;index"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)"`
	Metadata  datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt time.Time       `gorm:"not null;index"`
}

// GormIndexOptions configures the Postgres-backed index.
type GormIndexOptions struct {
	EmbeddingDim int
}

// GormIndexOption mutates GormIndexOptions.
type GormIndexOption func(*GormIndexOptions)

// WithEmbeddingDim sets the canonical embedding dimension used by storage.
func WithEmbeddingDim(dim int) GormIndexOption {
	return func(opts *GormIndexOptions) {
		opts.EmbeddingDim = dim
	}
}

// GormIndex implements Index on Postgres with the pgvector extension.
type GormIndex struct {
	db           *gorm.DB
	embeddingDim int
}

// NewGormIndex connects, enables pgvector, and migrates the schema.
// The caller bounds ctx; a deadline here lets startup degrade instead
// of hanging on an unreachable database.
func NewGormIndex(ctx context.Context, databaseURL string, options ...GormIndexOption) (*GormIndex, error) {
	opts := GormIndexOptions{EmbeddingDim: defaultEmbeddingDim}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.EmbeddingDim <= 0 {
		opts.EmbeddingDim = defaultEmbeddingDim
	}
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db = db.WithContext(ctx)
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return nil, fmt.Errorf("create pgvector extension: %w", err)
	}
	if err := db.AutoMigrate(&VectorRecordModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(fmt.Sprintf(`
		DO $$
		BEGIN
		IF EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'vector_record_models' AND column_name = 'embedding'
		) THEN
			ALTER TABLE vector_record_models ALTER COLUMN embedding TYPE vector(%d);
		END IF;
		END $$;
	`, opts.EmbeddingDim)).Error; err != nil {
		return nil, fmt.Errorf("alter embedding type: %w", err)
	}
	return &GormIndex{db: db, embeddingDim: opts.EmbeddingDim}, nil
}

// Upsert stores or replaces records. Last writer wins on conflicting IDs.
func (s *GormIndex) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]VectorRecordModel, 0, len(records))
	now := time.Now().UTC()
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record id required")
		}
		if s.embeddingDim > 0 && len(rec.Values) != s.embeddingDim {
			return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(rec.Values), s.embeddingDim)
		}
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		models = append(models, VectorRecordModel{
			ID:        rec.ID,
			Namespace: namespace,
			Embedding: pgvector.NewVector(rec.Values),
			Metadata:  datatypes.JSON(meta),
			CreatedAt: now,
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		CreateInBatches(&models, 200).Error
}

type matchRow struct {
	ID       string
	Metadata datatypes.JSON
	Score    float64
}

// Query returns up to topK matches. With a vector it orders by cosine
// distance and reports 1-distance as the similarity score; with a nil
// vector it scans by metadata filter alone.
func (s *GormIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	tx := s.db.WithContext(ctx).Model(&VectorRecordModel{}).
		Where("namespace = ?", namespace)
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		tx = tx.Where("metadata @> ?", datatypes.JSON(filterJSON))
	}
	var rows []matchRow
	if vector != nil {
		if s.embeddingDim > 0 && len(vector) != s.embeddingDim {
			return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), s.embeddingDim)
		}
		vec := pgvector.NewVector(vector)
		tx = tx.Select("id, metadata, 1 - (embedding <=> ?) AS score", vec).
			Order(clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}})
	} else {
		tx = tx.Select("id, metadata, 0 AS score").
			Order("created_at ASC")
	}
	if err := tx.Limit(topK).Scan(&rows).Error; err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		meta := map[string]any{}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		matches = append(matches, Match{ID: row.ID, Score: row.Score, Metadata: meta})
	}
	return matches, nil
}

// Delete removes records by ID within the namespace.
func (s *GormIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("namespace = ? AND id IN ?", namespace, ids).
		Delete(&VectorRecordModel{}).Error
}

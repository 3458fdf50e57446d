// Package vectorstore persists session items with their embeddings in
// PostgreSQL (pgvector) and answers nearest-neighbour queries over them.
package vectorstore

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Item kinds written by the CLI.
const (
	KindText     = "text"
	KindImageOCR = "image_ocr"
)

// SessionItem is one row of session_items. ContentHash is nil when the item
// was inserted without de-duplication.
type SessionItem struct {
	ID          int64            `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID   string           `gorm:"column:session_id;type:text;not null;uniqueIndex:uniq_session_items,priority:1"`
	Kind        string           `gorm:"column:kind;type:text;not null"`
	ContentText string           `gorm:"column:content_text;type:text"`
	Embedding   *pgvector.Vector `gorm:"column:embedding;type:vector(1536)"`
	ContentHash []byte           `gorm:"column:content_hash;type:bytea;uniqueIndex:uniq_session_items,priority:2"`
	CreatedAt   time.Time        `gorm:"column:created_at;not null"`
	DeletedAt   gorm.DeletedAt   `gorm:"column:deleted_at;index"`
}

func (SessionItem) TableName() string {
	return "session_items"
}

// Match is one search hit.
type Match struct {
	ID         int64
	SessionID  string
	Kind       string
	Preview    string
	Similarity float64
}

// SearchOptions controls a similarity search.
type SearchOptions struct {
	// SessionID restricts the search to one session when non-empty.
	SessionID string
	// TopK is the maximum number of matches. Zero means DefaultTopK.
	TopK int
	// Probes sets ivfflat.probes for the query. Zero means DefaultProbes.
	Probes int
}

const (
	DefaultTopK   = 5
	DefaultProbes = 10
	PreviewLength = 60
)

func (o SearchOptions) withDefaults() SearchOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Probes <= 0 {
		o.Probes = DefaultProbes
	}
	return o
}

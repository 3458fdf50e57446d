package vectorstore

import (
	"context"
	"strconv"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cybersafe/internal/embedding"
	"cybersafe/internal/logger"
)

const embeddingIndexSQL = `CREATE INDEX IF NOT EXISTS session_items_embedding_idx
	ON session_items USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`

// Store reads and writes session_items.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to databaseURL. The pool is capped at one connection since a
// CLI run issues its statements sequentially.
func Open(databaseURL string) (*Store, error) {
	log := logger.WithComponent("vectorstore")

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, wrapStoreError("open", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, wrapStoreError("open", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Store{db: db, log: log}, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db, log: logger.WithComponent("vectorstore")}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return wrapStoreError("close", err)
	}
	return wrapStoreError("close", sqlDB.Close())
}

// Migrate creates the vector extension, the session_items table with its
// unique (session_id, content_hash) index, and the ivfflat cosine index.
// It is safe to run repeatedly and adds content_hash to older tables.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return wrapStoreError("migrate", err)
	}
	if err := db.AutoMigrate(&SessionItem{}); err != nil {
		return wrapStoreError("migrate", err)
	}
	if err := db.Exec(embeddingIndexSQL).Error; err != nil {
		return wrapStoreError("migrate", err)
	}

	s.log.Info().Msg("Schema is up to date")
	return nil
}

// Insert stores item. When a live or deleted row already holds the same
// (session_id, content_hash) nothing is written and inserted is false.
// Items without a content hash are always inserted.
func (s *Store) Insert(ctx context.Context, item *SessionItem) (id int64, inserted bool, err error) {
	if item.SessionID == "" {
		return 0, false, wrapStoreError("insert", ErrEmptySession)
	}
	if item.Embedding != nil && len(item.Embedding.Slice()) != embedding.Dimension {
		return 0, false, wrapStoreError("insert", ErrDimensionMismatch)
	}

	res := insertQuery(s.db.WithContext(ctx), item)
	if res.Error != nil {
		return 0, false, wrapStoreError("insert", res.Error)
	}

	if res.RowsAffected == 0 {
		s.log.Debug().Str("session_id", item.SessionID).Msg("Duplicate item skipped")
		return 0, false, nil
	}
	return item.ID, true, nil
}

// insertQuery creates item unless its (session_id, content_hash) pair is
// already stored. A NULL content_hash never conflicts.
func insertQuery(tx *gorm.DB, item *SessionItem) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "content_hash"}},
		DoNothing: true,
	}).Create(item)
}

// Search returns the items nearest to query by cosine distance.
func (s *Store) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != embedding.Dimension {
		return nil, wrapStoreError("search", ErrDimensionMismatch)
	}
	opts = opts.withDefaults()

	var matches []Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SET does not take bind parameters; Probes is an int.
		if err := tx.Exec("SET LOCAL ivfflat.probes = " + strconv.Itoa(opts.Probes)).Error; err != nil {
			return err
		}
		return searchQuery(tx, pgvector.NewVector(query), opts).Find(&matches).Error
	})
	if err != nil {
		return nil, wrapStoreError("search", err)
	}
	return matches, nil
}

func searchQuery(tx *gorm.DB, vec pgvector.Vector, opts SearchOptions) *gorm.DB {
	q := tx.Model(&SessionItem{}).
		Select("id, session_id, kind, LEFT(content_text, "+strconv.Itoa(PreviewLength)+") AS preview, 1 - (embedding <=> ?) AS similarity", vec).
		Where("embedding IS NOT NULL")
	if opts.SessionID != "" {
		q = q.Where("session_id = ?", opts.SessionID)
	}
	return q.
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{vec}}}).
		Limit(opts.TopK)
}

// SoftDelete marks every live item of sessionID as deleted and returns how
// many rows changed.
func (s *Store) SoftDelete(ctx context.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, wrapStoreError("delete", ErrEmptySession)
	}
	res := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&SessionItem{})
	if res.Error != nil {
		return 0, wrapStoreError("delete", res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of live items in sessionID.
func (s *Store) Count(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	if err := countQuery(s.db.WithContext(ctx), sessionID, &n).Error; err != nil {
		return 0, wrapStoreError("count", err)
	}
	return n, nil
}

func countQuery(tx *gorm.DB, sessionID string, n *int64) *gorm.DB {
	return tx.Model(&SessionItem{}).Where("session_id = ?", sessionID).Count(n)
}

package vectorstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cybersafe/internal/embedding"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestSearchQuery_SQL(t *testing.T) {
	db := dryRunDB(t)
	vec := pgvector.NewVector([]float32{1, 0, 0})

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var matches []Match
		return searchQuery(tx, vec, SearchOptions{SessionID: "sess-var-1", TopK: 3}).Find(&matches)
	})

	assert.Contains(t, sql, "LEFT(content_text, 60) AS preview")
	assert.Contains(t, sql, "1 - (embedding <=> '")
	assert.Contains(t, sql, "embedding IS NOT NULL")
	assert.Contains(t, sql, "session_id = 'sess-var-1'")
	assert.Contains(t, sql, "deleted_at")
	assert.Contains(t, sql, "ORDER BY embedding <=> '")
	assert.Contains(t, sql, "LIMIT 3")
}

func TestSearchQuery_AllSessions(t *testing.T) {
	db := dryRunDB(t)
	vec := pgvector.NewVector([]float32{1, 0, 0})

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var matches []Match
		return searchQuery(tx, vec, SearchOptions{}.withDefaults()).Find(&matches)
	})

	assert.NotContains(t, sql, "session_id =")
	assert.Contains(t, sql, "LIMIT 5")
}

func TestInsertQuery_SQL(t *testing.T) {
	db := dryRunDB(t)
	vec := pgvector.NewVector(make([]float32, embedding.Dimension))
	hash := embedding.ContentHash("You are such a loser")

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return insertQuery(tx, &SessionItem{
			SessionID:   "sess-var-1",
			Kind:        KindText,
			ContentText: "You are such a loser",
			ContentHash: hash,
			Embedding:   &vec,
		})
	})

	assert.Contains(t, sql, `INSERT INTO "session_items"`)
	assert.Contains(t, sql, `ON CONFLICT ("session_id","content_hash") DO NOTHING`)
	assert.Contains(t, sql, `RETURNING "id"`)
	assert.Contains(t, sql, `"content_hash"`)
}

func TestCountQuery_SQL(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var n int64
		return countQuery(tx, "sess-var-1", &n)
	})

	assert.Contains(t, sql, `SELECT count(*) FROM "session_items"`)
	assert.Contains(t, sql, "session_id = 'sess-var-1'")
	assert.Contains(t, sql, `"session_items"."deleted_at" IS NULL`)
}

func TestSearchOptions_Defaults(t *testing.T) {
	opts := SearchOptions{}.withDefaults()
	assert.Equal(t, DefaultTopK, opts.TopK)
	assert.Equal(t, DefaultProbes, opts.Probes)

	opts = SearchOptions{TopK: 2, Probes: 20}.withDefaults()
	assert.Equal(t, 2, opts.TopK)
	assert.Equal(t, 20, opts.Probes)
}

func TestStore_InputValidation(t *testing.T) {
	store := New(dryRunDB(t))
	ctx := context.Background()

	_, _, err := store.Insert(ctx, &SessionItem{Kind: KindText, ContentText: "x"})
	assert.ErrorIs(t, err, ErrEmptySession)

	short := pgvector.NewVector([]float32{1, 2, 3})
	_, _, err = store.Insert(ctx, &SessionItem{SessionID: "s", Kind: KindText, Embedding: &short})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Search(ctx, []float32{1, 2, 3}, SearchOptions{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.SoftDelete(ctx, "")
	assert.ErrorIs(t, err, ErrEmptySession)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "delete", storeErr.Op)
}

func unitVector(hot int) []float32 {
	v := make([]float32, embedding.Dimension)
	v[hot] = 1
	return v
}

// TestStore_Postgres runs against a live pgvector database.
func TestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := Open(dsn)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrate must be repeatable")

	session := "test-" + uuid.NewString()
	text := "You are stupid and worthless!"

	newItem := func(hot int) *SessionItem {
		v := pgvector.NewVector(unitVector(hot))
		return &SessionItem{
			SessionID:   session,
			Kind:        KindText,
			ContentText: text,
			Embedding:   &v,
			ContentHash: embedding.ContentHash(text),
		}
	}

	id, inserted, err := store.Insert(ctx, newItem(0))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, id)

	_, inserted, err = store.Insert(ctx, newItem(0))
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := store.Count(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	matches, err := store.Search(ctx, unitVector(0), SearchOptions{SessionID: session, Probes: 20})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	assert.Equal(t, text, matches[0].Preview)

	deleted, err := store.SoftDelete(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	matches, err = store.Search(ctx, unitVector(0), SearchOptions{SessionID: session})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

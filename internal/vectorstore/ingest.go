package vectorstore

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"cybersafe/internal/embedding"
	"cybersafe/internal/logger"
)

// Repository is the part of Store the Ingestor needs.
type Repository interface {
	Insert(ctx context.Context, item *SessionItem) (int64, bool, error)
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
}

// IngestResult reports what happened to one ingested text.
type IngestResult struct {
	ID       int64
	Inserted bool
}

// Ingestor embeds texts and writes them to a Repository.
type Ingestor struct {
	embedder embedding.Creator
	repo     Repository
	log      zerolog.Logger
}

func NewIngestor(embedder embedding.Creator, repo Repository) *Ingestor {
	return &Ingestor{
		embedder: embedder,
		repo:     repo,
		log:      logger.WithComponent("ingestor"),
	}
}

// Ingest embeds text and stores it under sessionID. With dedup the content
// hash is set, so a repeat of the same text in the same session is skipped.
func (i *Ingestor) Ingest(ctx context.Context, sessionID, kind, text string, dedup bool) (IngestResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return IngestResult{}, ErrEmptySession
	}
	if strings.TrimSpace(text) == "" {
		return IngestResult{}, ErrEmptyText
	}
	if kind == "" {
		kind = KindText
	}

	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return IngestResult{}, err
	}
	v := pgvector.NewVector(vec)

	item := &SessionItem{
		SessionID:   sessionID,
		Kind:        kind,
		ContentText: text,
		Embedding:   &v,
	}
	if dedup {
		item.ContentHash = embedding.ContentHash(text)
	}

	id, inserted, err := i.repo.Insert(ctx, item)
	if err != nil {
		return IngestResult{}, err
	}

	log := logger.WithSession("ingestor", sessionID)
	log.Debug().
		Int64("id", id).
		Bool("inserted", inserted).
		Str("kind", kind).
		Msg("Item ingested")
	return IngestResult{ID: id, Inserted: inserted}, nil
}

// Query embeds text and returns its nearest stored items.
func (i *Ingestor) Query(ctx context.Context, text string, opts SearchOptions) ([]Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	matches, err := i.repo.Search(ctx, vec, opts)
	if err != nil {
		return nil, err
	}
	i.log.Debug().
		Str("session_id", opts.SessionID).
		Int("matches", len(matches)).
		Msg("Query answered")
	return matches, nil
}

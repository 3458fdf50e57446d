package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cybersafe/internal/config"
	"cybersafe/internal/embedding"
	"cybersafe/internal/logger"
	"cybersafe/internal/vectorstore"
)

const (
	demoSessionID = "sess-var-1"
	demoQuery     = "This is a mean and insulting comment."
	demoProbes    = 20
)

// demoTexts cover an insult, a neutral arrangement, encouragement, an
// exclusionary remark and a request for help.
var demoTexts = []string{
	"You are such a loser, nobody likes you.",
	"Let's meet at 3 PM near the library.",
	"Great job on your presentation! Proud of you",
	"Go back to where you came from.",
	"Can you help me with the math homework?",
}

var vectorCmd = &cobra.Command{
	Use:   "vector",
	Short: "Store and search text embeddings in PostgreSQL (pgvector)",
	Long: `Manage the session_items table: texts embedded with an Azure OpenAI
deployment and searched by cosine similarity.

Required environment variables:
  AOAI_KEY         - Azure OpenAI key
  AOAI_EP          - Azure OpenAI endpoint

Optional environment variables:
  AOAI_API_VERSION - API version (default: 2024-02-15-preview)
  AOAI_EMB_DEPLOY  - Embedding deployment (default: emb-small)
  DATABASE_URL     - PostgreSQL URL (default: local development database)`,
}

var vectorMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the vector extension, table and indexes",
	Args:  cobra.NoArgs,
	RunE:  runVectorMigrate,
}

var vectorInsertCmd = &cobra.Command{
	Use:   "insert [text...]",
	Short: "Embed texts and store them in a session",
	Example: `  # Insert into a new session
  cybersafe vector insert "sample text to embed"

  # Insert into a known session, skipping texts already stored there
  cybersafe vector insert --session sess-1 "hello" "HELLO"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVectorInsert,
}

var vectorSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find the stored texts most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runVectorSearch,
}

var vectorDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Soft-delete every item of a session",
	Args:  cobra.NoArgs,
	RunE:  runVectorDelete,
}

var vectorDemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Insert five varied texts with de-duplication and search for an insult",
	Args:  cobra.NoArgs,
	RunE:  runVectorDemo,
}

func init() {
	rootCmd.AddCommand(vectorCmd)
	vectorCmd.AddCommand(vectorMigrateCmd, vectorInsertCmd, vectorSearchCmd, vectorDeleteCmd, vectorDemoCmd)

	vectorCmd.PersistentFlags().Int("timeout", 120, "Processing timeout in seconds")

	vectorInsertCmd.Flags().String("session", "", "Session id (default: a new UUID)")
	vectorInsertCmd.Flags().String("kind", vectorstore.KindText, "Item kind")
	vectorInsertCmd.Flags().Bool("dedup", true, "Skip texts already stored in the session (case-insensitive)")

	vectorSearchCmd.Flags().String("session", "", "Restrict the search to one session")
	vectorSearchCmd.Flags().Int("top-k", vectorstore.DefaultTopK, "Number of matches")
	vectorSearchCmd.Flags().Int("probes", vectorstore.DefaultProbes, "ivfflat lists probed per query")
	vectorSearchCmd.Flags().Bool("json", false, "Output as JSON")

	vectorDeleteCmd.Flags().String("session", "", "Session id [REQUIRED]")
	_ = vectorDeleteCmd.MarkFlagRequired("session")

	vectorDemoCmd.Flags().String("session", demoSessionID, "Session id for the demo texts")
}

// openVectorStore connects to the database configured in cfg.
func openVectorStore(cfg *config.Config, log zerolog.Logger) (*vectorstore.Store, error) {
	store, err := vectorstore.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open vector store")
		return nil, err
	}
	return store, nil
}

// newIngestor wires the Azure OpenAI embedder to store.
func newIngestor(cfg *config.Config, store *vectorstore.Store) (*vectorstore.Ingestor, error) {
	if err := cfg.RequireEmbeddings(); err != nil {
		return nil, err
	}
	creator, err := embedding.NewAzureOpenAICreator(embedding.AzureConfig{
		APIKey:     cfg.AOAIKey,
		Endpoint:   cfg.AOAIEndpoint,
		APIVersion: cfg.AOAIAPIVersion,
		Deployment: cfg.AOAIDeployment,
	})
	if err != nil {
		return nil, err
	}
	return vectorstore.NewIngestor(creator, store), nil
}

func closeStore(store *vectorstore.Store, log zerolog.Logger) {
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close vector store")
	}
}

func runVectorMigrate(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("vector")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	store, err := openVectorStore(appConfig, log)
	if err != nil {
		return handleVectorError(err, log)
	}
	defer closeStore(store, log)

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		return handleVectorError(err, log)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
	return nil
}

func runVectorInsert(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("vector")

	sessionID, _ := cmd.Flags().GetString("session")
	kind, _ := cmd.Flags().GetString("kind")
	dedup, _ := cmd.Flags().GetBool("dedup")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if sessionID == "" {
		sessionID = uuid.NewString()
		log.Info().Str("session_id", sessionID).Msg("Generated new session id")
	}

	store, err := openVectorStore(appConfig, log)
	if err != nil {
		return handleVectorError(err, log)
	}
	defer closeStore(store, log)

	ingestor, err := newIngestor(appConfig, store)
	if err != nil {
		return handleVectorError(err, log)
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session: %s\n", sessionID)
	for _, text := range args {
		res, err := ingestor.Ingest(ctx, sessionID, kind, text, dedup)
		if err != nil {
			return handleVectorError(err, log)
		}
		fmt.Fprintln(out, formatIngestResult(res, text))
	}

	count, err := store.Count(ctx, sessionID)
	if err != nil {
		return handleVectorError(err, log)
	}
	fmt.Fprintf(out, "Session items: %d\n", count)
	return nil
}

func runVectorSearch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("vector")

	sessionID, _ := cmd.Flags().GetString("session")
	topK, _ := cmd.Flags().GetInt("top-k")
	probes, _ := cmd.Flags().GetInt("probes")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	store, err := openVectorStore(appConfig, log)
	if err != nil {
		return handleVectorError(err, log)
	}
	defer closeStore(store, log)

	ingestor, err := newIngestor(appConfig, store)
	if err != nil {
		return handleVectorError(err, log)
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	matches, err := ingestor.Query(ctx, args[0], vectorstore.SearchOptions{
		SessionID: sessionID,
		TopK:      topK,
		Probes:    probes,
	})
	if err != nil {
		return handleVectorError(err, log)
	}

	log.Info().Int("matches", len(matches)).Msg("Search completed")

	data, err := renderMatches(args[0], matches, jsonOutput)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runVectorDelete(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("vector")

	sessionID, _ := cmd.Flags().GetString("session")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	store, err := openVectorStore(appConfig, log)
	if err != nil {
		return handleVectorError(err, log)
	}
	defer closeStore(store, log)

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	n, err := store.SoftDelete(ctx, sessionID)
	if err != nil {
		return handleVectorError(err, log)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d items from session %s\n", n, sessionID)
	return nil
}

func runVectorDemo(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("vector-demo")

	sessionID, _ := cmd.Flags().GetString("session")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	store, err := openVectorStore(appConfig, log)
	if err != nil {
		return handleVectorError(err, log)
	}
	defer closeStore(store, log)

	ingestor, err := newIngestor(appConfig, store)
	if err != nil {
		return handleVectorError(err, log)
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		return handleVectorError(err, log)
	}

	out := cmd.OutOrStdout()
	for _, text := range demoTexts {
		res, err := ingestor.Ingest(ctx, sessionID, vectorstore.KindText, text, true)
		if err != nil {
			return handleVectorError(err, log)
		}
		fmt.Fprintln(out, formatIngestResult(res, text))
	}

	matches, err := ingestor.Query(ctx, demoQuery, vectorstore.SearchOptions{
		TopK:   vectorstore.DefaultTopK,
		Probes: demoProbes,
	})
	if err != nil {
		return handleVectorError(err, log)
	}

	data, err := renderMatches(demoQuery, matches, false)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	_, err = out.Write(data)
	return err
}

func formatIngestResult(res vectorstore.IngestResult, text string) string {
	preview := text
	if r := []rune(preview); len(r) > 50 {
		preview = string(r[:50])
	}
	if !res.Inserted {
		return fmt.Sprintf("Skipped (duplicate) | %s", preview)
	}
	return fmt.Sprintf("Inserted: %d | %s", res.ID, preview)
}

func renderMatches(query string, matches []vectorstore.Match, jsonOutput bool) ([]byte, error) {
	if jsonOutput {
		type matchJSON struct {
			ID         int64   `json:"id"`
			SessionID  string  `json:"session_id"`
			Kind       string  `json:"kind"`
			Preview    string  `json:"preview"`
			Similarity float64 `json:"similarity"`
		}
		out := make([]matchJSON, len(matches))
		for i, m := range matches {
			out[i] = matchJSON(m)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Query: %s\n", query)
	if len(matches) == 0 {
		buf.WriteString("No matches\n")
		return buf.Bytes(), nil
	}
	for _, m := range matches {
		fmt.Fprintf(&buf, "%6d  %.4f  %-12s %s\n", m.ID, m.Similarity, m.SessionID, m.Preview)
	}
	return buf.Bytes(), nil
}

// handleVectorError provides user-friendly error messages for vector store failures
func handleVectorError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Vector operation failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, config.ErrMissingSetting):
		return fmt.Errorf("embeddings are not configured: %w", err)
	case errors.Is(err, embedding.ErrDimensionMismatch), errors.Is(err, vectorstore.ErrDimensionMismatch):
		return fmt.Errorf("embedding dimension does not match the vector(%d) column. Check AOAI_EMB_DEPLOY: %w", embedding.Dimension, err)
	case errors.Is(err, vectorstore.ErrEmptyText), errors.Is(err, embedding.ErrEmptyText):
		return fmt.Errorf("text must be non-empty")
	case strings.Contains(errStr, "connect") || strings.Contains(errStr, "dial"):
		return fmt.Errorf("cannot reach the database. Check DATABASE_URL and that PostgreSQL is running: %w", err)
	case strings.Contains(errStr, "session_items") && strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("the session_items table is missing. Run 'cybersafe vector migrate' first: %w", err)
	default:
		return fmt.Errorf("vector operation failed: %w", err)
	}
}

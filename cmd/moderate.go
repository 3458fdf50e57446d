package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cybersafe/internal/config"
	"cybersafe/internal/logger"
	"cybersafe/internal/moderation"
	"cybersafe/internal/sheets"
)

var moderateCmd = &cobra.Command{
	Use:   "moderate [text...]",
	Short: "Classify text for harmful content with Azure AI Content Safety",
	Long: `Analyze one or more texts and report a risk level per text.

Every category the provider returns is bucketed from its 0-7 severity into
Safe (0), Low (1-2), Medium (3-4) or High (5-7). The overall risk level is
the highest category level. Texts can be passed as arguments or read from a
file with one text per line.

Required environment variables:
  AZURE_CONTENT_SAFETY_KEY      - Content Safety subscription key
  AZURE_CONTENT_SAFETY_ENDPOINT - Content Safety resource endpoint

Optional environment variables:
  MODERATION_PROVIDER           - Moderation backend (default: azure)
  GOOGLE_SHEET_URL              - Sheet used by --sheet
  GOOGLE_SHEET_WORKSHEET        - Worksheet used by --sheet (default: Moderation)`,
	Example: `  # Moderate a single text
  cybersafe moderate "You are stupid and worthless!"

  # Moderate a file of comments and print JSON
  cybersafe moderate --file comments.txt --json

  # Read from stdin and append the results to Google Sheets
  cat comments.txt | cybersafe moderate --file - --sheet`,
	RunE: runModerate,
}

// ModerationOutput is one entry of the --json output.
type ModerationOutput struct {
	Source string            `json:"source"`
	Text   string            `json:"text"`
	Result moderation.Result `json:"result"`
}

type textInput struct {
	source string
	text   string
}

func init() {
	rootCmd.AddCommand(moderateCmd)

	moderateCmd.Flags().StringP("file", "f", "", "Read texts from a file, one per line (- for stdin)")
	moderateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	moderateCmd.Flags().Bool("json", false, "Output as JSON")
	moderateCmd.Flags().Bool("sheet", false, "Append results to the Google Sheet in GOOGLE_SHEET_URL")
	moderateCmd.Flags().StringSlice("categories", nil, "Categories to analyze (default: Hate,SelfHarm,Sexual,Violence)")
	moderateCmd.Flags().StringSlice("blocklist", nil, "Custom blocklist names to match against")
	moderateCmd.Flags().Bool("halt-on-blocklist", false, "Stop category analysis after a blocklist hit")
	moderateCmd.Flags().Int("timeout", 60, "Processing timeout in seconds")
}

func runModerate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("moderate")

	filePath, _ := cmd.Flags().GetString("file")
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	categories, _ := cmd.Flags().GetStringSlice("categories")
	blocklists, _ := cmd.Flags().GetStringSlice("blocklist")
	haltOnBlocklist, _ := cmd.Flags().GetBool("halt-on-blocklist")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	inputs, err := collectTextInputs(args, filePath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no text to moderate: pass texts as arguments or use --file")
	}

	log.Info().
		Int("texts", len(inputs)).
		Str("provider", appConfig.ModerationProvider).
		Bool("json", jsonOutput).
		Bool("sheet", toSheet).
		Msg("Starting moderation")

	analyzer, err := newAnalyzer(appConfig, &moderation.AzureOptions{
		Categories:         categories,
		BlocklistNames:     blocklists,
		HaltOnBlocklistHit: haltOnBlocklist,
	})
	if err != nil {
		return handleModerationError(err, log)
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	texts := make([]string, len(inputs))
	for i, in := range inputs {
		texts[i] = in.text
	}
	results := analyzer.AnalyzeBatch(ctx, texts)

	outputs := make([]ModerationOutput, len(inputs))
	for i, in := range inputs {
		outputs[i] = ModerationOutput{Source: in.source, Text: in.text, Result: results[i]}
	}

	summarizeModeration(outputs, log)

	if toSheet {
		if err := exportToSheet(ctx, appConfig, outputs, log); err != nil {
			return err
		}
	}

	data, err := renderModeration(outputs, jsonOutput)
	if err != nil {
		return err
	}
	return writeOutput(data, outputPath, log)
}

// newAnalyzer builds the analyzer for the configured provider.
func newAnalyzer(cfg *config.Config, azureOpts *moderation.AzureOptions) (*moderation.Analyzer, error) {
	if err := cfg.RequireModeration(); err != nil {
		return nil, err
	}

	provider, err := moderation.NewProvider(moderation.ProviderName(cfg.ModerationProvider), moderation.ProviderConfig{
		Endpoint: cfg.AzureContentSafetyEndpoint,
		APIKey:   cfg.AzureContentSafetyKey,
		Azure:    azureOpts,
	})
	if err != nil {
		return nil, err
	}

	return moderation.NewAnalyzer(provider, moderation.WithLogger(logger.WithComponent("moderation"))), nil
}

// collectTextInputs gathers texts from args followed by the lines of
// filePath. Blank lines in the file are skipped; blank arguments are kept so
// they are reported as invalid input.
func collectTextInputs(args []string, filePath string, stdin io.Reader) ([]textInput, error) {
	var inputs []textInput
	for i, arg := range args {
		inputs = append(inputs, textInput{source: fmt.Sprintf("arg:%d", i+1), text: arg})
	}

	if filePath == "" {
		return inputs, nil
	}

	var r io.Reader
	name := filePath
	if filePath == "-" {
		r = stdin
		name = "stdin"
	} else {
		f, err := os.Open(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		inputs = append(inputs, textInput{source: fmt.Sprintf("%s:%d", name, line), text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return inputs, nil
}

func summarizeModeration(outputs []ModerationOutput, log zerolog.Logger) {
	counts := map[moderation.Level]int{}
	harmful := 0
	for _, out := range outputs {
		counts[out.Result.RiskLevel]++
		if out.Result.IsHarmful {
			harmful++
		}
	}

	event := log.Info().Int("total", len(outputs)).Int("harmful", harmful)
	for level, n := range counts {
		event = event.Int(strings.ToLower(string(level)), n)
	}
	event.Msg("Moderation completed")
}

func renderModeration(outputs []ModerationOutput, jsonOutput bool) ([]byte, error) {
	if jsonOutput {
		data, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	for i, out := range outputs {
		if i > 0 {
			buf.WriteByte('\n')
		}
		formatModerationResult(&buf, out)
	}
	return buf.Bytes(), nil
}

// formatModerationResult writes the human-readable report for one text.
func formatModerationResult(w io.Writer, out ModerationOutput) {
	harmful := "no"
	if out.Result.IsHarmful {
		harmful = "yes"
	}
	fmt.Fprintf(w, "%s  Risk: %s  Harmful: %s\n", out.Source, out.Result.RiskLevel, harmful)
	fmt.Fprintf(w, "  Text: %s\n", out.Text)

	if out.Result.Err != nil {
		fmt.Fprintf(w, "  Error: %v\n", out.Result.Err)
		return
	}

	names := make([]string, 0, len(out.Result.Categories))
	for name := range out.Result.Categories {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %-7s (%.2f)\n", name, out.Result.Categories[name], out.Result.ConfidenceScores[name])
	}
}

// exportToSheet appends outputs to the configured worksheet.
func exportToSheet(ctx context.Context, cfg *config.Config, outputs []ModerationOutput, log zerolog.Logger) error {
	if err := cfg.RequireSheet(); err != nil {
		return err
	}

	svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create sheets service")
		return fmt.Errorf("failed to create sheets service: %w", err)
	}

	rows := make([]sheets.ResultRow, len(outputs))
	for i, out := range outputs {
		rows[i] = sheets.ResultRow{Source: out.Source, Text: out.Text, Result: out.Result}
	}

	if err := svc.AppendResults(ctx, cfg.GoogleSheetWorksheet, rows); err != nil {
		return fmt.Errorf("failed to write results to sheet: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d rows to sheet %q\n", len(rows), cfg.GoogleSheetWorksheet)
	return nil
}

// handleModerationError provides user-friendly error messages for setup failures
func handleModerationError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Moderation setup failed")

	switch {
	case errors.Is(err, config.ErrMissingSetting):
		return fmt.Errorf("moderation is not configured: %w. Set the variables in your environment or .env file", err)
	case errors.Is(err, moderation.ErrUnsupportedProvider):
		return fmt.Errorf("unsupported MODERATION_PROVIDER %q (supported: %s)", appConfig.ModerationProvider, moderation.ProviderAzure)
	case errors.Is(err, moderation.ErrMissingCredentials):
		return fmt.Errorf("Azure Content Safety credentials are missing: %w", err)
	case errors.Is(err, moderation.ErrTooManyBlocklists):
		return fmt.Errorf("invalid --blocklist: %w", err)
	default:
		return fmt.Errorf("failed to set up moderation: %w", err)
	}
}

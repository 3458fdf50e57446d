package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cybersafe/internal/config"
	"cybersafe/internal/logger"
	"cybersafe/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file...]",
	Short: "Extract text from images",
	Long: `Extract the text of one or more images (PNG, JPEG or GIF).

Three engines are available:
  tesseract   Local Tesseract, no network (default in builds with -tags tesseract)
  vision      Google Cloud Vision text detection (default otherwise)
  documentai  Google Document AI OCR processor

A failed image does not stop the run; its output is the error prefixed with
"[OCR Error]". Use - to read a single image from stdin.

Required environment variables for vision and documentai:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS             - Inline JSON credentials string

For --engine documentai:
  GOOGLE_CLOUD_PROJECT           - Your Google Cloud project ID
  GOOGLE_CLOUD_LOCATION          - Processor location (default: us)
  DOCUMENT_AI_PROCESSOR_ID       - Document OCR processor ID`,
	Example: `  # Extract text from a screenshot
  cybersafe ocr chat.png

  # Hint German and English and write JSON to a file
  cybersafe ocr chat.png --languages de,en --json -o result.json

  # Use Document AI
  cybersafe ocr scan.jpg --engine documentai`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	File               string   `json:"file"`
	Text               string   `json:"text"`
	Lines              []string `json:"lines,omitempty"`
	Engine             string   `json:"engine"`
	Languages          []string `json:"languages,omitempty"`
	ProcessedAt        string   `json:"processed_at"`
	ProcessingDuration string   `json:"processing_duration"`
	Error              *string  `json:"error"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	addOCRFlags(ocrCmd)
	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func addOCRFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", "", "OCR engine: tesseract, vision or documentai (default: OCR_ENGINE or the build default)")
	cmd.Flags().StringSlice("languages", nil, "Language hints (default: OCR_LANGUAGES or en)")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	extractor, err := newExtractorFromFlags(ctx, cmd, appConfig, log)
	if err != nil {
		return handleOCRError(err, log)
	}
	defer func() {
		if closeErr := extractor.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	extractions := extractAll(ctx, extractor, args, cmd.InOrStdin(), log)

	data, err := renderOCR(args, extractions, jsonOutput)
	if err != nil {
		return err
	}
	if err := writeOutput(data, outputPath, log); err != nil {
		return err
	}

	if firstErr := allFailed(extractions); firstErr != nil {
		return handleOCRError(firstErr, log)
	}
	return nil
}

// newExtractorFromFlags builds an Extractor from --engine and --languages,
// falling back to the configuration.
func newExtractorFromFlags(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log zerolog.Logger) (*ocr.Extractor, error) {
	engineName, _ := cmd.Flags().GetString("engine")
	languages, _ := cmd.Flags().GetStringSlice("languages")

	if engineName == "" {
		engineName = cfg.OCREngine
	}
	engineName = strings.ToLower(engineName)
	if len(languages) == 0 {
		languages = cfg.OCRLanguages
	}

	if engineName == ocr.EngineDocumentAI {
		if err := cfg.RequireDocumentAI(); err != nil {
			return nil, err
		}
	}

	engine, err := ocr.NewEngine(ctx, engineName, ocr.EngineConfig{
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		},
	})
	if err != nil {
		return nil, err
	}

	extractor := ocr.NewExtractor(engine, languages...)
	log.Debug().
		Str("engine", engine.Name()).
		Strs("languages", extractor.Languages()).
		Msg("OCR extractor created")
	return extractor, nil
}

// extractAll runs the extractor over every file in order. "-" reads stdin.
func extractAll(ctx context.Context, extractor *ocr.Extractor, files []string, stdin io.Reader, log zerolog.Logger) []ocr.Extraction {
	extractions := make([]ocr.Extraction, len(files))
	for i, file := range files {
		src := ocr.FromPath(file)
		if file == "-" {
			src = ocr.FromReader(stdin)
		}

		extractions[i] = extractor.Extract(ctx, src)

		event := log.Info()
		if extractions[i].Failed() {
			event = log.Warn().Err(extractions[i].Err)
		}
		event.
			Str("file", file).
			Int("index", i+1).
			Int("text_length", len(extractions[i].Text)).
			Dur("duration", extractions[i].ProcessingDuration).
			Msg("Image processed")
	}
	return extractions
}

func allFailed(extractions []ocr.Extraction) error {
	for _, ext := range extractions {
		if !ext.Failed() {
			return nil
		}
	}
	if len(extractions) == 0 {
		return nil
	}
	return extractions[0].Err
}

func newOCROutput(file string, ext ocr.Extraction) OCROutput {
	out := OCROutput{
		File:               file,
		Text:               ext.Text,
		Lines:              ext.Lines,
		Engine:             ext.Engine,
		Languages:          ext.Languages,
		ProcessedAt:        ext.ProcessedAt.Format("2006-01-02T15:04:05Z07:00"),
		ProcessingDuration: ext.ProcessingDuration.String(),
	}
	if ext.Err != nil {
		msg := ext.Err.Error()
		out.Error = &msg
	}
	return out
}

func renderOCR(files []string, extractions []ocr.Extraction, jsonOutput bool) ([]byte, error) {
	if jsonOutput {
		outputs := make([]OCROutput, len(files))
		for i := range files {
			outputs[i] = newOCROutput(files[i], extractions[i])
		}
		data, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	for i, file := range files {
		if len(files) > 1 {
			if i > 0 {
				buf.WriteByte('\n')
			}
			fmt.Fprintf(&buf, "== %s ==\n", file)
		}
		buf.WriteString(extractions[i].String())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, config.ErrMissingSetting):
		return fmt.Errorf("OCR engine is not configured: %w", err)
	case errors.Is(err, ocr.ErrUnsupportedEngine):
		return fmt.Errorf("unsupported OCR engine (supported: %s, %s, %s): %w", ocr.EngineTesseract, ocr.EngineVision, ocr.EngineDocumentAI, err)
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. GOOGLE_APPLICATION_CREDENTIALS with the path to a service account JSON file\n" +
			"2. GOOGLE_CREDENTIALS with inline JSON\n" +
			"3. Application Default Credentials: gcloud auth application-default login")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB). Try resizing or compressing it")
	case errors.Is(err, ocr.ErrInvalidImage):
		return fmt.Errorf("invalid or corrupted image. Supported formats are PNG, JPEG and GIF: %w", err)
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials: %w", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your service account may call the OCR API: %w", err)
	case strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

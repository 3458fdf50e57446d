package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cybersafe/internal/logger"
	"cybersafe/internal/moderation"
	"cybersafe/internal/ocr"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-file...]",
	Short: "Extract text from images and moderate it",
	Long: `Run OCR on each image and classify the extracted text.

Images whose text cannot be extracted are reported with the OCR error and
are not sent to the moderation provider. Images without any text are
reported as invalid input.

Requires the variables of both the ocr and the moderate commands.`,
	Example: `  # Check a chat screenshot
  cybersafe scan chat.png

  # Scan a folder of screenshots and append the results to Google Sheets
  cybersafe scan screenshots/*.png --sheet`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

// ScanOutput is one entry of the --json output.
type ScanOutput struct {
	File   string             `json:"file"`
	OCR    OCROutput          `json:"ocr"`
	Result *moderation.Result `json:"result"`
}

func init() {
	rootCmd.AddCommand(scanCmd)

	addOCRFlags(scanCmd)
	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Bool("sheet", false, "Append results to the Google Sheet in GOOGLE_SHEET_URL")
	scanCmd.Flags().Int("timeout", 180, "Processing timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	analyzer, err := newAnalyzer(appConfig, nil)
	if err != nil {
		return handleModerationError(err, log)
	}

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

	scans := make([]ScanOutput, len(args))
	var moderated []ModerationOutput
	for i, file := range args {
		scans[i] = ScanOutput{File: file, OCR: newOCROutput(file, extractions[i])}
		if extractions[i].Failed() {
			continue
		}

		result := analyzer.Analyze(ctx, extractions[i].Text)
		scans[i].Result = &result
		moderated = append(moderated, ModerationOutput{Source: file, Text: extractions[i].Text, Result: result})
	}

	summarizeModeration(moderated, log)

	if toSheet && len(moderated) > 0 {
		if err := exportToSheet(ctx, appConfig, moderated, log); err != nil {
			return err
		}
	}

	data, err := renderScan(scans, extractions, jsonOutput)
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

func renderScan(scans []ScanOutput, extractions []ocr.Extraction, jsonOutput bool) ([]byte, error) {
	if jsonOutput {
		data, err := json.MarshalIndent(scans, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	for i, scan := range scans {
		if i > 0 {
			buf.WriteByte('\n')
		}
		if scan.Result == nil {
			fmt.Fprintf(&buf, "%s  %s\n", scan.File, extractions[i].String())
			continue
		}
		formatModerationResult(&buf, ModerationOutput{Source: scan.File, Text: extractions[i].Text, Result: *scan.Result})
	}
	return buf.Bytes(), nil
}

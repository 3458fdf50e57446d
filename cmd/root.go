package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cybersafe/internal/config"
	"cybersafe/internal/logger"
)

var version = "1.0.0"

// appConfig is set by Execute before any command runs.
var appConfig = config.Load()

var rootCmd = &cobra.Command{
	Use:   "cybersafe",
	Short: "Cybersafe - content moderation, OCR and semantic search tools",
	Long: `Cybersafe bundles the building blocks of a cyberbullying detection pipeline:

  moderate  classify text into Safe / Low / Medium / High risk
  ocr       extract text from screenshots and photos
  scan      OCR images and moderate the extracted text
  vector    store and search text embeddings in PostgreSQL (pgvector)

Configuration is read from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with cfg as the shared configuration.
func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")

	if cfg != nil {
		appConfig = cfg
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// writeOutput writes data to outputPath, or to stdout when the path is empty.
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output", outputPath).
		Int("bytes", len(data)).
		Msg("Output written")
	fmt.Fprintf(os.Stderr, "Output written to %s\n", outputPath)
	return nil
}

package ocr

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"
)

const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

// defaultEngine is tesseract in builds that link libtesseract, vision otherwise.
var defaultEngine = EngineVision

// DefaultEngine names the engine NewEngine builds for an empty name.
func DefaultEngine() string {
	return defaultEngine
}

// EngineConfig carries the settings any engine may need.
type EngineConfig struct {
	DocumentAI DocumentAIConfig
}

// NewEngine builds the engine registered under name.
func NewEngine(ctx context.Context, name string, cfg EngineConfig) (Engine, error) {
	if name == "" {
		name = defaultEngine
	}
	switch name {
	case EngineTesseract:
		return NewTesseractEngine()
	case EngineVision:
		return NewGoogleVisionEngine(ctx)
	case EngineDocumentAI:
		return NewDocumentAIEngine(ctx, cfg.DocumentAI)
	default:
		return nil, WrapOCRError("NewEngine", ErrUnsupportedEngine, fmt.Sprintf("engine %q", name))
	}
}

// googleClientOptions returns client options for the credentials found in the
// environment and the variable they came from. With neither variable set the
// options are empty and the client uses application default credentials.
func googleClientOptions() ([]option.ClientOption, string) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, "GOOGLE_CREDENTIALS"
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, "GOOGLE_APPLICATION_CREDENTIALS"
	}
	return nil, ""
}

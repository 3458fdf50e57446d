package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// DocumentProcessor is the part of the Document AI client the engine uses.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIConfig locates the Document OCR processor.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
	Timeout     time.Duration
}

// ProcessorName returns the fully qualified processor resource name.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAIEngine implements Engine with a Document AI OCR processor.
type DocumentAIEngine struct {
	client DocumentProcessor
	config DocumentAIConfig
}

// NewDocumentAIEngine creates the engine with credentials from environment.
func NewDocumentAIEngine(ctx context.Context, config DocumentAIConfig) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "project and processor id are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	opts, source := googleClientOptions()
	if config.Location != "us" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		if source == "" {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIEngine{client: client, config: config}, nil
}

// NewDocumentAIEngineWithClient creates the engine with an explicit client (for testing).
func NewDocumentAIEngineWithClient(config DocumentAIConfig, client DocumentProcessor) *DocumentAIEngine {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &DocumentAIEngine{client: client, config: config}
}

func (d *DocumentAIEngine) Name() string {
	return EngineDocumentAI
}

// Recognize sends the image to the processor and returns its text lines.
func (d *DocumentAIEngine) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	const op = "Recognize"

	content, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: "image/png",
			},
		},
		ProcessOptions: &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{LanguageHints: languages},
			},
		},
	}

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}
	if resp.GetDocument() == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in Document AI response")
	}

	return documentLines(resp.GetDocument()), nil
}

// documentLines resolves each page line's text anchor against the document text.
func documentLines(doc *documentaipb.Document) []string {
	text := doc.GetText()
	runes := []rune(text)
	var lines []string
	for _, page := range doc.GetPages() {
		for _, line := range page.GetLines() {
			if s := anchorText(runes, line.GetLayout().GetTextAnchor()); s != "" {
				lines = append(lines, s)
			}
		}
	}
	if len(lines) == 0 && strings.TrimSpace(text) != "" {
		for _, l := range strings.Split(text, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	}
	return lines
}

// anchorText joins the anchor's segments. Segment indices count characters,
// so they are applied to the decoded runes of the document text.
func anchorText(runes []rune, anchor *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := seg.GetStartIndex(), seg.GetEndIndex()
		if start < 0 || end > int64(len(runes)) || start >= end {
			continue
		}
		b.WriteString(string(runes[start:end]))
	}
	return strings.TrimSpace(b.String())
}

// Close closes the underlying Document AI client.
func (d *DocumentAIEngine) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

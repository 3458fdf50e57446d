package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
)

// ImageAnnotator is the part of the Vision client the engine uses.
type ImageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// GoogleVisionEngine implements Engine using Google Cloud Vision API.
type GoogleVisionEngine struct {
	client ImageAnnotator
}

// NewGoogleVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env,
// and falls back to application default credentials.
func NewGoogleVisionEngine(ctx context.Context) (*GoogleVisionEngine, error) {
	const op = "NewGoogleVisionEngine"

	opts, source := googleClientOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if source == "" {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create client with "+source)
	}

	return &GoogleVisionEngine{client: client}, nil
}

// NewGoogleVisionEngineWithClient creates a Vision engine with an explicit client (for testing).
func NewGoogleVisionEngineWithClient(client ImageAnnotator) *GoogleVisionEngine {
	return &GoogleVisionEngine{client: client}
}

func (g *GoogleVisionEngine) Name() string {
	return EngineVision
}

// Recognize runs TEXT_DETECTION on the image.
func (g *GoogleVisionEngine) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	const op = "Recognize"

	content, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: languages,
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}

	return visionLines(imgResp), nil
}

// visionLines splits the detected text into lines. The full text annotation
// is preferred; the first text annotation carries the same text for images
// where no full annotation was produced.
func visionLines(resp *visionpb.AnnotateImageResponse) []string {
	var text string
	switch {
	case resp.FullTextAnnotation != nil:
		text = resp.FullTextAnnotation.Text
	case len(resp.TextAnnotations) > 0:
		text = resp.TextAnnotations[0].Description
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Close closes the underlying Vision client.
func (g *GoogleVisionEngine) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

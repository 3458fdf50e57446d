package ocr

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/status"
)

type fakeAnnotator struct {
	resp   *visionpb.BatchAnnotateImagesResponse
	err    error
	req    *visionpb.BatchAnnotateImagesRequest
	closed bool
}

func (f *fakeAnnotator) BatchAnnotateImages(_ context.Context, req *visionpb.BatchAnnotateImagesRequest, _ ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

func TestGoogleVisionEngine_Recognize(t *testing.T) {
	client := &fakeAnnotator{
		resp: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{
				FullTextAnnotation: &visionpb.TextAnnotation{Text: "You are such a loser,\n\nnobody likes you.\n"},
			}},
		},
	}
	engine := NewGoogleVisionEngineWithClient(client)

	lines, err := engine.Recognize(context.Background(), testImage(), []string{"en"})
	require.NoError(t, err)
	assert.Equal(t, []string{"You are such a loser,", "nobody likes you."}, lines)

	require.Len(t, client.req.Requests, 1)
	sent := client.req.Requests[0]
	assert.Equal(t, visionpb.Feature_TEXT_DETECTION, sent.Features[0].Type)
	assert.Equal(t, []string{"en"}, sent.ImageContext.LanguageHints)
	assert.NotEmpty(t, sent.Image.Content)

	require.NoError(t, engine.Close())
	assert.True(t, client.closed)
}

func TestGoogleVisionEngine_Recognize_TextAnnotationFallback(t *testing.T) {
	client := &fakeAnnotator{
		resp: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{
				TextAnnotations: []*visionpb.EntityAnnotation{{Description: "STOP\nNO ENTRY"}, {Description: "STOP"}},
			}},
		},
	}

	lines, err := NewGoogleVisionEngineWithClient(client).Recognize(context.Background(), testImage(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"STOP", "NO ENTRY"}, lines)
}

func TestGoogleVisionEngine_Recognize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeAnnotator
	}{
		{"call failure", &fakeAnnotator{err: errors.New("Unauthenticated")}},
		{"empty response", &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{}}},
		{"image error", &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{Error: &status.Status{Code: 3, Message: "Bad image data."}}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGoogleVisionEngineWithClient(tt.client).Recognize(context.Background(), testImage(), nil)
			assert.ErrorIs(t, err, ErrOCRFailed)
		})
	}
}

package moderation_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cybersafe/internal/moderation"
)

const testEndpoint = "https://test.cognitiveservices.azure.com/"

// fakeTransport answers every request with a canned response and records
// what was sent.
type fakeTransport struct {
	status   int
	body     string
	err      error
	requests []*http.Request
	payloads [][]byte
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		f.payloads = append(f.payloads, data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Request:    req,
	}, nil
}

func newAzure(t *testing.T, transport *fakeTransport, opts *moderation.AzureOptions) *moderation.AzureContentSafety {
	t.Helper()
	if opts == nil {
		opts = &moderation.AzureOptions{}
	}
	opts.ClientOptions = policy.ClientOptions{Transport: transport}
	provider, err := moderation.NewAzureContentSafety(testEndpoint, "secret-key", opts)
	require.NoError(t, err)
	return provider
}

func TestNewAzureContentSafety_MissingCredentials(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		key      string
	}{
		{"no key", testEndpoint, ""},
		{"no endpoint", "", "key"},
		{"blank", "  ", "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := moderation.NewAzureContentSafety(tt.endpoint, tt.key, nil)
			assert.ErrorIs(t, err, moderation.ErrMissingCredentials)
		})
	}
}

func TestAzureContentSafety_AnalyzeText(t *testing.T) {
	transport := &fakeTransport{
		status: http.StatusOK,
		body: `{"blocklistsMatch":[],"categoriesAnalysis":[
			{"category":"Hate","severity":0},
			{"category":"SelfHarm","severity":0},
			{"category":"Sexual","severity":0},
			{"category":"Violence","severity":6}]}`,
	}
	provider := newAzure(t, transport, nil)

	analysis, err := provider.AnalyzeText(context.Background(), "I will kill you.")
	require.NoError(t, err)
	require.Len(t, analysis.Categories, 4)
	assert.Equal(t, moderation.CategorySeverity{Category: "Violence", Severity: 6}, analysis.Categories[3])
	assert.Empty(t, analysis.Blocklists)

	require.Len(t, transport.requests, 1)
	req := transport.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/contentsafety/text:analyze", req.URL.Path)
	assert.Equal(t, "2023-10-01", req.URL.Query().Get("api-version"))
	assert.Equal(t, "secret-key", req.Header.Get("Ocp-Apim-Subscription-Key"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(transport.payloads[0], &sent))
	assert.Equal(t, "I will kill you.", sent["text"])
	assert.Equal(t, "EightSeverityLevels", sent["outputType"])
	assert.Equal(t, []any{"Hate", "SelfHarm", "Sexual", "Violence"}, sent["categories"])
}

func TestAzureContentSafety_AnalyzeText_Blocklists(t *testing.T) {
	transport := &fakeTransport{
		status: http.StatusOK,
		body: `{"blocklistsMatch":[{"blocklistName":"school","blocklistItemId":"1","blocklistItemText":"loser"}],
			"categoriesAnalysis":[{"category":"Hate","severity":2}]}`,
	}
	provider := newAzure(t, transport, &moderation.AzureOptions{
		Categories:         []string{"Hate"},
		BlocklistNames:     []string{"school"},
		HaltOnBlocklistHit: true,
	})

	analysis, err := provider.AnalyzeText(context.Background(), "You are such a loser")
	require.NoError(t, err)
	require.Len(t, analysis.Blocklists, 1)
	assert.Equal(t, "school", analysis.Blocklists[0].BlocklistName)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(transport.payloads[0], &sent))
	assert.Equal(t, []any{"school"}, sent["blocklistNames"])
	assert.Equal(t, true, sent["haltOnBlocklistHit"])
}

func TestAzureContentSafety_AnalyzeText_Errors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		transport := &fakeTransport{
			status: http.StatusUnauthorized,
			body:   `{"error":{"code":"401","message":"Access denied due to invalid subscription key."}}`,
		}
		provider := newAzure(t, transport, nil)

		_, err := provider.AnalyzeText(context.Background(), "text")
		require.Error(t, err)

		var respErr *azcore.ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, http.StatusUnauthorized, respErr.StatusCode)
		assert.Len(t, transport.requests, 1, "retries are disabled")
	})

	t.Run("malformed body", func(t *testing.T) {
		provider := newAzure(t, &fakeTransport{status: http.StatusOK, body: `{"categoriesAnalysis":`}, nil)

		_, err := provider.AnalyzeText(context.Background(), "text")
		var analysisErr *moderation.AnalysisError
		require.ErrorAs(t, err, &analysisErr)
		assert.Equal(t, "AnalyzeText", analysisErr.Op)
	})
}

func TestAzureContentSafety_EmptyAnalysisIsSafe(t *testing.T) {
	transport := &fakeTransport{status: http.StatusOK, body: `{"blocklistsMatch":[],"categoriesAnalysis":[]}`}
	analyzer := moderation.NewAnalyzer(newAzure(t, transport, nil))

	result := analyzer.Analyze(context.Background(), "Good morning")
	require.NoError(t, result.Err)
	assert.Equal(t, moderation.LevelSafe, result.RiskLevel)
	assert.False(t, result.IsHarmful)
	assert.Empty(t, result.Categories)
}

func TestNewAzureContentSafety_TooManyBlocklists(t *testing.T) {
	names := make([]string, 11)
	for i := range names {
		names[i] = fmt.Sprintf("list-%d", i)
	}

	_, err := moderation.NewAzureContentSafety(testEndpoint, "secret-key", &moderation.AzureOptions{BlocklistNames: names})
	require.ErrorIs(t, err, moderation.ErrTooManyBlocklists)
	assert.Contains(t, err.Error(), "11 given, at most 10")

	_, err = moderation.NewAzureContentSafety(testEndpoint, "secret-key", &moderation.AzureOptions{BlocklistNames: names[:10]})
	assert.NoError(t, err)
}

func TestAzureContentSafety_ThroughAnalyzer(t *testing.T) {
	transport := &fakeTransport{
		status: http.StatusOK,
		body:   `{"categoriesAnalysis":[{"category":"Hate","severity":0},{"category":"Violence","severity":0}]}`,
	}
	analyzer := moderation.NewAnalyzer(newAzure(t, transport, nil))

	result := analyzer.Analyze(context.Background(), "Hello, how are you today?")
	require.NoError(t, result.Err)
	assert.Equal(t, "azure", result.Provider)
	assert.Equal(t, moderation.LevelSafe, result.RiskLevel)
	assert.False(t, result.IsHarmful)

	long := strings.Repeat("a", moderation.AzureMaxTextLength+1)
	result = analyzer.Analyze(context.Background(), long)
	assert.ErrorIs(t, result.Err, moderation.ErrTextTooLong)
	assert.Len(t, transport.requests, 1)
}

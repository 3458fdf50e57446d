package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"cybersafe/internal/moderation"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-dEf_123/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-dEf_123", id)

	_, err = extractSpreadsheetID("https://example.com/not-a-sheet")
	assert.ErrorIs(t, err, ErrInvalidSheetURL)
}

func TestRowToValues(t *testing.T) {
	row := ResultRow{
		Source: "comments.txt:2",
		Text:   "I will hurt you",
		Result: moderation.Result{
			IsHarmful: true,
			RiskLevel: moderation.LevelHigh,
			Categories: map[string]moderation.Level{
				"Violence": moderation.LevelHigh,
				"Hate":     moderation.LevelSafe,
			},
			ConfidenceScores: map[string]float64{"Violence": 6.0 / 7.0, "Hate": 0},
			Provider:         "azure",
		},
	}

	values := rowToValues(row, "2026-01-02 03:04:05")
	require.Len(t, values, len(headers))
	assert.Equal(t, "2026-01-02 03:04:05", values[0])
	assert.Equal(t, "comments.txt:2", values[1])
	assert.Equal(t, true, values[3])
	assert.Equal(t, "High", values[4])
	assert.Equal(t, "Hate=Safe (0.00); Violence=High (0.86)", values[5])
	assert.Equal(t, "azure", values[6])
	assert.Equal(t, "", values[7])
}

func TestRowToValues_Failed(t *testing.T) {
	row := ResultRow{
		Source: "arg:1",
		Result: moderation.Result{
			RiskLevel: moderation.LevelUnknown,
			Provider:  "azure",
			Err:       errors.New("timeout"),
		},
	}

	values := rowToValues(row, "now")
	assert.Equal(t, "Unknown", values[4])
	assert.Equal(t, "", values[5])
	assert.Equal(t, "timeout", values[7])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab…", truncate("abcdef", 2))
	assert.Equal(t, "äö…", truncate("äöü", 2))
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_CREDENTIALS", "")
	_, err := loadCredentials()
	assert.ErrorIs(t, err, ErrMissingCredentials)

	t.Setenv("GOOGLE_CREDENTIALS", `{"type":"service_account"}`)
	creds, err := loadCredentials()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(creds))
}

// fakeSheetsAPI serves the subset of the Sheets v4 REST API the exporter uses.
type fakeSheetsAPI struct {
	mu       sync.Mutex
	calls    []string
	appended [][]interface{}
	headers  [][]interface{}
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "batchUpdate")
		_, _ = w.Write([]byte(`{"replies":[{"addSheet":{"properties":{"sheetId":7,"title":"Moderation"}}}]}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append")
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.appended = body.Values
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "updateHeaders")
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.headers = body.Values
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "getHeaders")
		_, _ = w.Write([]byte(`{"values":[]}`))
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, "getSpreadsheet")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet123","sheets":[]}`))
	default:
		http.Error(w, "unexpected request", http.StatusNotFound)
	}
}

func TestAppendResults(t *testing.T) {
	api := &fakeSheetsAPI{}
	server := httptest.NewServer(api)
	defer server.Close()

	ctx := context.Background()
	svc, err := NewSheetsServiceWithOptions(ctx,
		"https://docs.google.com/spreadsheets/d/sheet123/edit",
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	rows := []ResultRow{
		{Source: "arg:1", Text: "Hello, how are you today?", Result: moderation.Result{RiskLevel: moderation.LevelSafe, Provider: "azure"}},
		{Source: "arg:2", Text: "", Result: moderation.Result{RiskLevel: moderation.LevelInvalid, Provider: "azure", Err: moderation.ErrEmptyText}},
	}
	require.NoError(t, svc.AppendResults(ctx, "Moderation", rows))

	assert.Equal(t, []string{"getSpreadsheet", "batchUpdate", "getHeaders", "updateHeaders", "batchUpdate", "append"}, api.calls)
	require.Len(t, api.headers, 1)
	assert.Equal(t, headers, api.headers[0])
	require.Len(t, api.appended, 2)
	assert.Equal(t, "arg:2", api.appended[1][1])
	assert.Equal(t, "Invalid", api.appended[1][4])
}

func TestAppendResults_Empty(t *testing.T) {
	svc := &Service{}
	assert.NoError(t, svc.AppendResults(context.Background(), "Moderation", nil))
}

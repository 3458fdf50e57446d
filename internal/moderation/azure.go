package moderation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/rs/zerolog"

	"cybersafe/internal/logger"
)

const (
	azureModule           = "cybersafe/moderation"
	azureModuleVersion    = "v1.0.0"
	azureAPIVersion       = "2023-10-01"
	azureAnalyzeTextPath  = "contentsafety/text:analyze"
	azureSubscriptionKey  = "Ocp-Apim-Subscription-Key"
	azureOutputType       = "EightSeverityLevels"
	AzureMaxTextLength    = 10000
	azureMaxBlocklistSize = 10
)

// DefaultAzureCategories are analyzed when AzureOptions.Categories is empty.
var DefaultAzureCategories = []string{"Hate", "SelfHarm", "Sexual", "Violence"}

// AzureOptions tunes the Azure Content Safety provider.
type AzureOptions struct {
	Categories         []string
	BlocklistNames     []string
	HaltOnBlocklistHit bool

	// ClientOptions is passed to the azcore pipeline. Retries are disabled
	// unless Retry.MaxRetries is set explicitly.
	ClientOptions policy.ClientOptions
}

// AzureContentSafety calls the Azure AI Content Safety text:analyze API.
type AzureContentSafety struct {
	endpoint string
	pipeline runtime.Pipeline
	opts     AzureOptions
	log      zerolog.Logger
}

type azureAnalyzeRequest struct {
	Text               string   `json:"text"`
	Categories         []string `json:"categories,omitempty"`
	BlocklistNames     []string `json:"blocklistNames,omitempty"`
	HaltOnBlocklistHit bool     `json:"haltOnBlocklistHit,omitempty"`
	OutputType         string   `json:"outputType"`
}

type azureAnalyzeResponse struct {
	BlocklistsMatch    []BlocklistMatch   `json:"blocklistsMatch"`
	CategoriesAnalysis []CategorySeverity `json:"categoriesAnalysis"`
}

// NewAzureContentSafety builds the provider. Both endpoint and key are
// required.
func NewAzureContentSafety(endpoint, key string, opts *AzureOptions) (*AzureContentSafety, error) {
	endpoint = strings.TrimSpace(endpoint)
	key = strings.TrimSpace(key)
	if endpoint == "" || key == "" {
		return nil, &AnalysisError{Op: "NewAzureContentSafety", Provider: string(ProviderAzure), Err: ErrMissingCredentials}
	}

	var o AzureOptions
	if opts != nil {
		o = *opts
	}
	if len(o.Categories) == 0 {
		o.Categories = DefaultAzureCategories
	}
	if len(o.BlocklistNames) > azureMaxBlocklistSize {
		return nil, &AnalysisError{
			Op:       "NewAzureContentSafety",
			Provider: string(ProviderAzure),
			Err:      fmt.Errorf("%w: %d given, at most %d", ErrTooManyBlocklists, len(o.BlocklistNames), azureMaxBlocklistSize),
		}
	}
	clientOpts := o.ClientOptions
	if clientOpts.Retry.MaxRetries == 0 {
		clientOpts.Retry.MaxRetries = -1
	}

	cred := azcore.NewKeyCredential(key)
	pl := runtime.NewPipeline(azureModule, azureModuleVersion, runtime.PipelineOptions{
		PerCall: []policy.Policy{runtime.NewKeyCredentialPolicy(cred, azureSubscriptionKey, nil)},
	}, &clientOpts)

	return &AzureContentSafety{
		endpoint: endpoint,
		pipeline: pl,
		opts:     o,
		log:      logger.WithComponent("moderation-azure"),
	}, nil
}

func (a *AzureContentSafety) Name() string {
	return string(ProviderAzure)
}

func (a *AzureContentSafety) MaxTextLength() int {
	return AzureMaxTextLength
}

// AnalyzeText implements Provider.
func (a *AzureContentSafety) AnalyzeText(ctx context.Context, text string) (*Analysis, error) {
	const op = "AnalyzeText"

	req, err := runtime.NewRequest(ctx, http.MethodPost, runtime.JoinPaths(a.endpoint, azureAnalyzeTextPath))
	if err != nil {
		return nil, &AnalysisError{Op: op, Provider: a.Name(), Err: err}
	}
	q := req.Raw().URL.Query()
	q.Set("api-version", azureAPIVersion)
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header.Set("Accept", "application/json")

	body := azureAnalyzeRequest{
		Text:               text,
		Categories:         a.opts.Categories,
		BlocklistNames:     a.opts.BlocklistNames,
		HaltOnBlocklistHit: a.opts.HaltOnBlocklistHit,
		OutputType:         azureOutputType,
	}
	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return nil, &AnalysisError{Op: op, Provider: a.Name(), Err: err}
	}

	a.log.Debug().
		Int("text_length", len(text)).
		Strs("categories", body.Categories).
		Msg("Sending text to Content Safety")

	resp, err := a.pipeline.Do(req)
	if err != nil {
		return nil, &AnalysisError{Op: op, Provider: a.Name(), Err: err}
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, &AnalysisError{Op: op, Provider: a.Name(), Err: runtime.NewResponseError(resp)}
	}

	var out azureAnalyzeResponse
	if err := runtime.UnmarshalAsJSON(resp, &out); err != nil {
		return nil, &AnalysisError{Op: op, Provider: a.Name(), Err: err}
	}

	return &Analysis{
		Categories: out.CategoriesAnalysis,
		Blocklists: out.BlocklistsMatch,
	}, nil
}

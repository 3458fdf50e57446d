package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedVars = []string{
	"MODERATION_PROVIDER", "AZURE_CONTENT_SAFETY_KEY", "AZURE_CONTENT_SAFETY_ENDPOINT",
	"AOAI_KEY", "AOAI_EP", "AOAI_API_VERSION", "AOAI_EMB_DEPLOY", "DATABASE_URL",
	"OCR_ENGINE", "OCR_LANGUAGES", "GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION",
	"DOCUMENT_AI_PROCESSOR_ID", "GOOGLE_SHEET_URL", "GOOGLE_SHEET_WORKSHEET",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range managedVars {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, "azure", cfg.ModerationProvider)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, DefaultAOAIAPIVersion, cfg.AOAIAPIVersion)
	assert.Equal(t, DefaultAOAIDeployment, cfg.AOAIDeployment)
	assert.Empty(t, cfg.OCREngine)
	assert.Equal(t, []string{"en"}, cfg.OCRLanguages)
	assert.Equal(t, "us", cfg.GoogleCloudLocation)
	assert.Equal(t, DefaultModerationSheet, cfg.GoogleSheetWorksheet)
	assert.Equal(t, "stderr", cfg.LogOutput)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODERATION_PROVIDER", "Azure")
	t.Setenv("OCR_ENGINE", "DocumentAI")
	t.Setenv("OCR_LANGUAGES", "de, en ,,fr")
	t.Setenv("DATABASE_URL", "postgresql://u:p@db:5432/x")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "azure", cfg.ModerationProvider)
	assert.Equal(t, "documentai", cfg.OCREngine)
	assert.Equal(t, []string{"de", "en", "fr"}, cfg.OCRLanguages)
	assert.Equal(t, "postgresql://u:p@db:5432/x", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.GetLoggerConfig().Level)
}

func TestRequireModeration(t *testing.T) {
	clearEnv(t)

	err := Load().RequireModeration()
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.EqualError(t, err, "missing required setting: AZURE_CONTENT_SAFETY_ENDPOINT, AZURE_CONTENT_SAFETY_KEY")

	t.Setenv("AZURE_CONTENT_SAFETY_KEY", "key")
	err = Load().RequireModeration()
	assert.EqualError(t, err, "missing required setting: AZURE_CONTENT_SAFETY_ENDPOINT")

	t.Setenv("AZURE_CONTENT_SAFETY_ENDPOINT", "https://example.cognitiveservices.azure.com/")
	assert.NoError(t, Load().RequireModeration())
}

func TestRequireEmbeddings(t *testing.T) {
	clearEnv(t)

	err := Load().RequireEmbeddings()
	assert.EqualError(t, err, "missing required setting: AOAI_EP, AOAI_KEY")

	t.Setenv("AOAI_KEY", "k")
	t.Setenv("AOAI_EP", "https://example.openai.azure.com/")
	assert.NoError(t, Load().RequireEmbeddings())
}

func TestRequireDocumentAIAndSheet(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	assert.EqualError(t, cfg.RequireDocumentAI(), "missing required setting: DOCUMENT_AI_PROCESSOR_ID, GOOGLE_CLOUD_PROJECT")
	assert.EqualError(t, cfg.RequireSheet(), "missing required setting: GOOGLE_SHEET_URL")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"en"}, splitList("en"))
	assert.Equal(t, []string{"ch_sim", "en"}, splitList("ch_sim,en"))
}

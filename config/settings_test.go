package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	mgr := NewManagerWithFs("/data/settings.json", fs)

	settings, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 8585, settings.Server.Port)
	assert.Equal(t, "en-US", settings.Metadata.Language)
	assert.Equal(t, "gemini", settings.Assistant.Provider)

	// Defaults are persisted so the user has a file to edit.
	exists, err := afero.Exists(fs, "/data/settings.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	mgr := NewManagerWithFs("/data/settings.json", fs)

	settings, err := mgr.Load()
	require.NoError(t, err)

	settings.Metadata.TMDBAPIKey = "abc123"
	settings.Assistant.Provider = "openai"
	settings.Assistant.OpenAIAPIKey = "sk-test"
	require.NoError(t, mgr.Save(settings))

	reloaded, err := NewManagerWithFs("/data/settings.json", fs).Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", reloaded.Metadata.TMDBAPIKey)
	assert.Equal(t, "openai", reloaded.Assistant.Provider)
	assert.Equal(t, "sk-test", reloaded.Assistant.OpenAIAPIKey)
}

func TestLoadBackfillsMissingFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	partial := []byte(`{"server":{"port":9000},"metadata":{"tmdbApiKey":"k"}}`)
	require.NoError(t, afero.WriteFile(fs, "/data/settings.json", partial, 0o644))

	settings, err := NewManagerWithFs("/data/settings.json", fs).Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, settings.Server.Port)
	assert.Equal(t, "k", settings.Metadata.TMDBAPIKey)
	assert.Equal(t, "en-US", settings.Metadata.Language)
	assert.Equal(t, "US", settings.Metadata.Region)
	assert.Equal(t, "gemini", settings.Assistant.Provider)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/settings.json", []byte("{not json"), 0o644))

	_, err := NewManagerWithFs("/data/settings.json", fs).Load()
	assert.Error(t, err)
}

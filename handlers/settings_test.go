package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenscout/config"
)

func newTestSettingsHandler(t *testing.T) (*SettingsHandler, *config.Manager) {
	t.Helper()
	mgr := config.NewManagerWithFs("/data/settings.json", afero.NewMemMapFs())
	return NewSettingsHandler(mgr), mgr
}

func TestSettingsGet(t *testing.T) {
	h, _ := newTestSettingsHandler(t)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"port":8585`)
}

func TestSettingsUpdatePersists(t *testing.T) {
	h, mgr := newTestSettingsHandler(t)

	body := `{"server":{"host":"0.0.0.0","port":9000},"metadata":{"tmdbApiKey":"k","language":"en-US","region":"GB"},"assistant":{"provider":"openai","openaiApiKey":"sk"}}`
	rec := httptest.NewRecorder()
	h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	settings, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, settings.Server.Port)
	assert.Equal(t, "GB", settings.Metadata.Region)
	assert.Equal(t, "openai", settings.Assistant.Provider)
}

func TestSettingsUpdateRejectsBadPort(t *testing.T) {
	h, _ := newTestSettingsHandler(t)

	rec := httptest.NewRecorder()
	h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"server":{"port":0}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsUpdateRejectsUnknownProvider(t *testing.T) {
	h, _ := newTestSettingsHandler(t)

	body := `{"server":{"port":8585},"assistant":{"provider":"llamafarm"}}`
	rec := httptest.NewRecorder()
	h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

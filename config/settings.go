package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Metadata  MetadataSettings  `json:"metadata"`
	Assistant AssistantSettings `json:"assistant"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// MetadataSettings configures the TMDB client.
type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
	Region     string `json:"region"` // default region for watch provider lookups
}

// AssistantSettings selects and configures the text-generation provider.
// Provider is "gemini" (default) or "openai"; the openai provider works with
// any OpenAI-compatible chat-completions endpoint via BaseURL.
type AssistantSettings struct {
	Provider      string `json:"provider"`
	GeminiAPIKey  string `json:"geminiApiKey"`
	GeminiModel   string `json:"geminiModel"`
	OpenAIBaseURL string `json:"openaiBaseUrl"`
	OpenAIAPIKey  string `json:"openaiApiKey"`
	OpenAIModel   string `json:"openaiModel"`
}

// LogConfig represents file logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// Manager loads and saves settings. Filesystem access goes through afero so
// tests can run against an in-memory fs.
type Manager struct {
	path string
	fs   afero.Fs
	mu   sync.Mutex
}

func NewManager(path string) *Manager {
	return NewManagerWithFs(path, afero.NewOsFs())
}

func NewManagerWithFs(path string, fs afero.Fs) *Manager {
	return &Manager{path: path, fs: fs}
}

// Load reads settings from disk, creating the file with defaults when it
// doesn't exist yet. Missing fields are filled in from defaults so old config
// files keep working.
func (m *Manager) Load() (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		if os.IsNotExist(err) {
			settings := defaultSettings()
			if err := m.save(settings); err != nil {
				return nil, fmt.Errorf("write default settings: %w", err)
			}
			return settings, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	settings := defaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", m.path, err)
	}
	applyDefaults(settings)
	return settings, nil
}

// Save persists settings atomically (write to a temp file, then rename).
func (m *Manager) Save(settings *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(settings)
}

func (m *Manager) save(settings *Settings) error {
	dir := filepath.Dir(m.path)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	if err := afero.WriteFile(m.fs, tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return m.fs.Rename(tmp, m.path)
}

func defaultSettings() *Settings {
	return &Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8585,
		},
		Metadata: MetadataSettings{
			Language: "en-US",
			Region:   "US",
		},
		Assistant: AssistantSettings{
			Provider:    "gemini",
			GeminiModel: "gemini-2.0-flash",
			OpenAIModel: "gpt-4o-mini",
		},
		Log: LogConfig{
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
		},
	}
}

// applyDefaults backfills fields that older config files may not carry.
func applyDefaults(s *Settings) {
	if s.Server.Port == 0 {
		s.Server.Port = 8585
	}
	if strings.TrimSpace(s.Metadata.Language) == "" {
		s.Metadata.Language = "en-US"
	}
	if strings.TrimSpace(s.Metadata.Region) == "" {
		s.Metadata.Region = "US"
	}
	if strings.TrimSpace(s.Assistant.Provider) == "" {
		s.Assistant.Provider = "gemini"
	}
	if strings.TrimSpace(s.Assistant.GeminiModel) == "" {
		s.Assistant.GeminiModel = "gemini-2.0-flash"
	}
	if strings.TrimSpace(s.Assistant.OpenAIModel) == "" {
		s.Assistant.OpenAIModel = "gpt-4o-mini"
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"screenscout/api"
	"screenscout/config"
	"screenscout/handlers"
	"screenscout/services/assistant"
	"screenscout/services/metadata"
	"screenscout/utils"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("screenscout starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("SCREENSCOUT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if settings.Metadata.TMDBAPIKey == "" {
		log.Printf("Warning: no TMDB API key configured, metadata requests will fail (edit %s)", configPath)
	}

	// Construct services
	metadataService := metadata.NewService(settings.Metadata.TMDBAPIKey, settings.Metadata.Language, nil)

	provider, err := assistant.NewProvider(settings.Assistant, nil)
	if err != nil {
		log.Fatalf("failed to configure assistant provider: %v", err)
	}
	assistantService := assistant.NewService(provider)
	log.Printf("Assistant provider: %s", provider.Name())

	// Construct router and handlers
	var r *mux.Router = utils.NewRouter()

	metadataHandler := handlers.NewMetadataHandler(metadataService, cfgManager)
	assistantHandler := handlers.NewAssistantHandler(assistantService, metadataService)
	settingsHandler := handlers.NewSettingsHandler(cfgManager)

	r.HandleFunc("/api/metadata/search", metadataHandler.Search).Methods(http.MethodGet)
	r.HandleFunc("/api/metadata/trending", metadataHandler.Trending).Methods(http.MethodGet)
	r.HandleFunc("/api/metadata/discover", metadataHandler.Discover).Methods(http.MethodGet)
	r.HandleFunc("/api/metadata/{type}/{id}", metadataHandler.Details).Methods(http.MethodGet)
	r.HandleFunc("/api/metadata/{type}/{id}/similar", metadataHandler.Similar).Methods(http.MethodGet)
	r.HandleFunc("/api/metadata/{type}/{id}/recommendations", metadataHandler.Recommendations).Methods(http.MethodGet)
	r.HandleFunc("/api/metadata/{type}/{id}/providers", metadataHandler.WatchProviders).Methods(http.MethodGet)

	// Assistant routes are rate limited per IP since each request costs an LLM call
	assistantLimiter := api.NewIPRateLimiter(rate.Every(6*time.Second), 10)
	r.HandleFunc("/api/assistant/search", api.RateLimitHandlerFunc(assistantLimiter, assistantHandler.Search)).Methods(http.MethodPost)
	r.HandleFunc("/api/assistant/chat", api.RateLimitHandlerFunc(assistantLimiter, assistantHandler.Chat)).Methods(http.MethodPost)

	r.HandleFunc("/api/settings", settingsHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/settings", settingsHandler.Update).Methods(http.MethodPut)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

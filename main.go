package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-vault/internal/database"
	"video-vault/internal/handlers"
	"video-vault/internal/logging"
	"video-vault/internal/media"
	"video-vault/internal/middleware"
	"video-vault/internal/startup"
	"video-vault/internal/storage"
	"video-vault/internal/transcoder"
	"video-vault/internal/upload"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()
	ctx := context.Background()

	// Load configuration; a missing upload root or database directory is fatal
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	database.SetSessionDuration(config.SessionDuration)

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Clean up expired sessions periodically
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			if err := db.CleanExpiredSessions(); err != nil {
				logging.Warn("session cleanup failed: %v", err)
			}
		}
	}()

	// Initialize upload storage
	store, err := storage.New(config.UploadDir)
	if err != nil {
		startup.LogFatal("Failed to initialize upload storage: %v", err)
	}

	// Initialize transcoder
	startup.LogTranscoderInit(config.FFmpegPath)
	invoker := transcoder.New(config.FFmpegPath, config.TranscodeTimeout)

	// Initialize thumbnail generation and the ingestion pipeline
	thumbGen := media.NewThumbnailGenerator(config.ThumbnailDir, config.ThumbnailsEnabled)
	pipeline := upload.New(store, db, invoker, thumbGen)

	// Initialize handlers
	h := handlers.New(db, store, pipeline, thumbGen, config)

	// Setup router
	router := setupRouter(h, config.StaticDir)
	startup.LogHTTPRoutes(router)

	// Apply authentication middleware
	authedRouter := h.AuthMiddleware(router)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(authedRouter)

	// Apply metrics and compression middleware
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	// Metrics server on its own port so /metrics never leaks through the app
	if config.MetricsEnabled {
		go serveMetrics(config.MetricsPort)
	}

	// WriteTimeout is 0: streaming a long video must not be cut off
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv)

	startup.LogServerStarted(config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, staticDir string) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", h.Register).Methods("POST")
	auth.HandleFunc("/login", h.Login).Methods("POST")
	auth.HandleFunc("/logout", h.Logout).Methods("POST")
	auth.HandleFunc("/check", h.CheckAuth).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/videos", h.ListVideos).Methods("GET")
	api.HandleFunc("/videos", h.Upload).Methods("POST")
	api.HandleFunc("/videos/{id}", h.GetVideo).Methods("GET")
	api.HandleFunc("/videos/{id}", h.EditVideo).Methods("PATCH")
	api.HandleFunc("/videos/{id}", h.DeleteVideo).Methods("DELETE")
	api.HandleFunc("/videos/{id}/stream", h.StreamVideo).Methods("GET")
	api.HandleFunc("/videos/{id}/download", h.DownloadVideo).Methods("GET")
	api.HandleFunc("/videos/{id}/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/account", h.DeleteAccount).Methods("DELETE")

	// Static frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}

func serveMetrics(port string) {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())

	logging.Info("Metrics listening on :%s/metrics", port)
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     m,
		ReadTimeout: 15 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	startup.LogShutdownComplete()
}

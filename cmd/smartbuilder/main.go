// Package main is the entry point for the page builder server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"smartbuilder/internal/ai"
	"smartbuilder/internal/cache"
	"smartbuilder/internal/config"
	"smartbuilder/internal/database"
	"smartbuilder/internal/editor"
	"smartbuilder/internal/gateway"
	"smartbuilder/internal/handlers"
	"smartbuilder/internal/middleware"
	"smartbuilder/internal/models"
	"smartbuilder/internal/router"
	"smartbuilder/internal/session"
	"smartbuilder/internal/storage"
	"smartbuilder/internal/store"
)

// remotePublishStore is the version store with Publish routed through the
// generation backend's POST /publish.
type remotePublishStore struct {
	*store.VersionStore
	publisher *gateway.RemotePublisher
}

func (s remotePublishStore) Publish(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	return s.publisher.Publish(ctx, id)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"generation_mode", cfg.GenerationMode,
		"publish_mode", cfg.PublishMode,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed a starter homepage in development (no-op if versions exist).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (page cache + editor sessions).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// In non-development environments, mark session cookies as Secure (HTTPS-only).
	sessionStore := session.NewStore(valkeyClient, !cfg.IsDev())

	// Pages cached by a previous process may predate publishes made since.
	pageCache := cache.NewPageCache(valkeyClient, cache.DefaultPageTTL)
	pageCache.InvalidateAll(context.Background())

	// S3-compatible mirror of published pages (optional).
	storageClient, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	var pages handlers.PagePublisher
	if storageClient != nil {
		pages = storageClient
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", storageClient.Bucket())
	} else {
		slog.Warn("s3 storage not configured, published pages are not mirrored")
	}

	versions := store.NewVersionStore(db)

	// Generation: in-process through the AI providers, or a remote backend.
	var (
		gen        editor.Gateway
		aiRegistry *ai.Registry
		remote     *gateway.HTTPClient
	)
	if cfg.GenerationBaseURL != "" {
		remote = gateway.NewHTTPClient(cfg.GenerationBaseURL, cfg.GenerationTimeout)
	}
	switch cfg.GenerationMode {
	case config.GenerationRemote:
		gen = remote
		slog.Info("using remote generation backend", "base_url", cfg.GenerationBaseURL)
	default:
		aiRegistry = ai.NewRegistry(cfg.AIProvider, map[string]ai.ProviderConfig{
			"openai":  {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL},
			"gemini":  {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, BaseURL: cfg.GeminiBaseURL},
			"claude":  {APIKey: cfg.ClaudeKey, Model: cfg.ClaudeModel, BaseURL: cfg.ClaudeBaseURL},
			"mistral": {APIKey: cfg.MistralKey, Model: cfg.MistralModel, BaseURL: cfg.MistralBaseURL},
		})
		slog.Info("ai providers initialized",
			"active", aiRegistry.ActiveName(),
			"available", aiRegistry.Available(),
		)
		gen = gateway.NewProviderGateway(aiRegistry, cfg.GenerationTimeout)
	}

	// Publishing: directly on the version row, or through the backend.
	var editorStore editor.VersionStore = versions
	if cfg.PublishMode == config.PublishRemote {
		editorStore = remotePublishStore{
			VersionStore: versions,
			publisher:    gateway.NewRemotePublisher(remote, versions),
		}
		slog.Info("publishing through remote backend", "base_url", cfg.GenerationBaseURL)
	}

	workspaces := editor.NewWorkspaces(cfg.WorkspaceIdleTime, func(pageRoute string) *editor.Controller {
		c := editor.NewController(pageRoute, editorStore, gen, logger)
		if cfg.GenerationMode == config.GenerationRemote {
			c.SetPreviewSource(remote)
		}
		return c
	})

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)

	deps := router.Deps{
		Sessions:    sessionStore,
		EditorToken: cfg.EditorToken,
		RateLimiter: rateLimiter,
		Editor:      handlers.NewEditor(workspaces, sessionStore, versions, pageCache, pages, cfg.DefaultPageRoute),
		Public:      handlers.NewPublic(versions, pageCache, cfg.DefaultPageRoute),
	}
	// Serving the backend contract only makes sense when generating here;
	// it always publishes on the local table.
	if aiRegistry != nil {
		deps.Backend = handlers.NewBackend(gen, versions, pageCache, pages, cfg.DefaultPageRoute)
		deps.Providers = handlers.NewProviders(aiRegistry)
	}

	r := router.New(deps)

	// WriteTimeout must accommodate prompts that wait on the generator.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = srv.Shutdown(ctx)
	workspaces.Stop()
	rateLimiter.Stop()
	if err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

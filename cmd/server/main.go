// Command server runs the document-chat backend: an HTTP API for uploading
// documents into a vector index and asking questions answered from the
// indexed content.
//
// Startup order:
//  1. Load .env (best effort) and the environment configuration.
//  2. Configure global logging (zerolog level, optional pretty console).
//  3. Bootstrap OpenTelemetry tracing (no-op unless enabled).
//  4. Open the application database and run migrations.
//  5. Open the vector index and the model-provider client.
//  6. Wire services into the Gin router and serve until SIGINT/SIGTERM,
//     then drain connections within a shutdown grace period.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/docuchat/rag-backend/docs"
	"github.com/docuchat/rag-backend/internal/chain"
	"github.com/docuchat/rag-backend/internal/config"
	httpapi "github.com/docuchat/rag-backend/internal/http"
	"github.com/docuchat/rag-backend/internal/llm"
	"github.com/docuchat/rag-backend/internal/observability"
	"github.com/docuchat/rag-backend/internal/repo"
	"github.com/docuchat/rag-backend/internal/retriever"
	"github.com/docuchat/rag-backend/internal/sysutil"
	"github.com/docuchat/rag-backend/internal/vectorstore"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 15 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting rag-backend")

	ctx := context.Background()

	// Tracing (no-op unless OTEL_ENABLED)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Application database (documents, turns, feedback, idempotency)
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	// Model provider client (embeddings + chat completions)
	client := llm.NewClient(llm.Config{
		BaseURL:        sysutil.FirstNonEmpty(cfg.OpenAI.BaseURL, "https://api.openai.com/v1"),
		APIKey:         cfg.OpenAI.APIKey,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		Timeout:        cfg.OpenAI.Timeout,
	})

	// Vector index
	store, err := vectorstore.Open(cfg.VectorDBPath, client, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.VectorDBPath).Msg("open vector index failed")
	}

	// Retrieval-grounded conversational chain, with lexical degraded mode
	ret := retriever.New(store, cfg.TopK, retriever.WithLexicalFallback(store.Texts))
	answerer := chain.New(client, ret)

	// HTTP transport
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, store, answerer, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}

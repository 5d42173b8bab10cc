package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gwi.com/assistant/internal/api"
	"gwi.com/assistant/internal/config"
	"gwi.com/assistant/internal/core"
	"gwi.com/assistant/internal/observability"
	"gwi.com/assistant/internal/store"
)

// Keeps ingestion under the embedding API's per-minute quota.
const ingestPace = 40 * time.Millisecond

func main() {
	ingestDataFlag := flag.Bool("ingest", false, "Run data ingestion from DATA_FILE and exit")
	flag.Parse()

	envFound, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(config.AppConfig.LogLevel, "stdout")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if !envFound {
		logger.Info("no .env file found, using environment variables only")
	}
	if err := config.AppConfig.ValidateServer(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	if err := run(logger, *ingestDataFlag); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, ingest bool) error {
	ctx := context.Background()

	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	llmService, err := core.NewLLMService(ctx, config.AppConfig.GeminiAPIKey, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	defer llmService.Close()

	if ingest {
		logger.Info("starting data ingestion", zap.String("file", config.AppConfig.DataFile))
		n, err := dbStore.IngestDataFromFile(ctx, config.AppConfig.DataFile, llmService.GetEmbedding, ingestPace)
		if err != nil {
			return fmt.Errorf("data ingestion failed: %w", err)
		}
		logger.Info("data ingestion complete", zap.Int("chunks", n))
		return nil
	}

	ragService, err := core.NewRAGService(ctx, dbStore, llmService, llmService, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RAG service: %w", err)
	}
	queryService := core.NewQueryService(dbStore, ragService, logger)

	apiHandler := api.NewAPIHandler(queryService, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-quit:
	}
	logger.Info("shutting down server")

	// Give active connections time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exiting gracefully")
	return nil
}

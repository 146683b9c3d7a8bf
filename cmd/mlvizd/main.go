package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"mlviz/internal/analysis"
	"mlviz/internal/config"
	"mlviz/internal/handler"
	"mlviz/internal/middleware"
	"mlviz/internal/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	if _, err := analysis.ParseHiddenLayers(cfg.MLPHiddenLayers); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration: mlp_hidden_layers:", err)
		os.Exit(1)
	}

	logger, err := observability.InitLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mlviz", zap.Int("port", cfg.HTTPPort), zap.String("work_dir", cfg.WorkDir))

	provider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: "mlviz"})
	if err != nil {
		logger.Fatal("failed to initialize metrics", zap.Error(err))
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()
	metrics, err := observability.NewMetrics(provider)
	if err != nil {
		logger.Fatal("failed to create instruments", zap.Error(err))
	}

	svc := analysis.NewService(logger, metrics, analysis.Options{
		MaxCategories: cfg.MaxCategories,
		KMeansMaxIter: cfg.KMeansMaxIter,
		MLPMaxParams:  cfg.MLPMaxParams,
		Seed:          cfg.RandomSeed,
	})
	h := handler.New(svc, metrics, logger, handler.Settings{
		WorkDir:        cfg.WorkDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
		TreeMaxDepth:   cfg.TreeMaxDepth,
		HiddenLayers:   cfg.MLPHiddenLayers,
		MLPMaxIter:     cfg.MLPMaxIter,
	})

	// Routes.
	r := mux.NewRouter()
	handler.RegisterRoutes(r, h, metricsHandler)

	// Build middleware chain (applied in reverse order).
	var root http.Handler = r
	root = middleware.RecoverMiddleware(logger)(root)
	root = middleware.LoggingMiddleware(logger)(root)
	root = middleware.CORSMiddleware(cfg.CORSOrigin)(root)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("mlviz stopped")
}

// Package main runs the treasury gateway: the HTTP front end for shared
// wallet management, proposal signing and execution.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/Quorum-Labs/treasury_layer/internal/app"
	"github.com/Quorum-Labs/treasury_layer/internal/app/httpapi"
	"github.com/Quorum-Labs/treasury_layer/internal/app/metrics"
	"github.com/Quorum-Labs/treasury_layer/internal/app/services/execution"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage/postgres"
	"github.com/Quorum-Labs/treasury_layer/internal/config"
	"github.com/Quorum-Labs/treasury_layer/internal/platform/migrations"
	"github.com/Quorum-Labs/treasury_layer/pkg/logger"
)

func main() {
	envFile := flag.String("env", "", "optional .env file to load before reading configuration")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "load env (%s): %v\n", *envFile, err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("gateway exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, db, err := buildStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("configure stores: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	executor, err := buildExecutor(cfg, log)
	if err != nil {
		return fmt.Errorf("configure executor: %w", err)
	}

	application, err := app.New(stores, app.Options{Executor: executor}, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET not set; trusting X-Member header for identity")
	}
	apiHandler, err := httpapi.NewHandler(application, httpapi.Config{
		JWTSecret:          cfg.Auth.JWTSecret,
		AuditPath:          os.Getenv("AUDIT_LOG_PATH"),
		RateLimitPerSecond: cfg.Server.RateLimitPerSecond,
		RateLimitBurst:     cfg.Server.RateLimitBurst,
	})
	if err != nil {
		return fmt.Errorf("build http handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", metrics.InstrumentHandler(apiHandler))

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("gateway listening on %s", cfg.Server.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
	log.Info("gateway stopped")
	return nil
}

func buildStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.Driver != "postgres" {
		log.Warn("using in-memory store; wallets and proposals will not survive restart")
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{Wallets: store, Proposals: store}, db, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildExecutor(cfg *config.Config, log *logger.Logger) (execution.TransactionExecutor, error) {
	switch cfg.Executor.Mode {
	case "http":
		return execution.NewHTTPExecutor(nil, cfg.Executor.Endpoint, os.Getenv("EXECUTOR_API_KEY"), log)
	default:
		log.Warn("EXECUTOR_MODE set to mock; approved proposals acknowledge without broadcasting")
		return execution.NoopExecutor{}, nil
	}
}

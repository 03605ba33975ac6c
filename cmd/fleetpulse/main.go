package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/fleetpulse/internal/adapter/fsm"
	"github.com/neomorfeo/fleetpulse/internal/adapter/otel"
	"github.com/neomorfeo/fleetpulse/internal/adapter/river"
	"github.com/neomorfeo/fleetpulse/internal/adapter/sqlite"
	"github.com/neomorfeo/fleetpulse/internal/app"

	handler "github.com/neomorfeo/fleetpulse/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fleetpulse: %v", err)
	}
}

func run() error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "fleetpulse.db")
	serviceToken := os.Getenv("SERVICE_TOKEN")

	runInterval, err := time.ParseDuration(envOrDefault("RUN_INTERVAL", "1h"))
	if err != nil {
		return err
	}

	ctx := context.Background()

	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(dbPath)
	if err != nil {
		return err
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return err
	}
	defer store.Close()

	// The run worker gets its runner after the River client exists,
	// because the batch job publishes through the same client.
	runWorker := &river.RunWorker{}

	queue, err := river.Setup(ctx, db, runWorker, runInterval)
	if err != nil {
		return err
	}

	publisher := otel.NewTracingPublisher(river.NewPublisher(queue))

	// --- Application ---
	job := app.NewJob(app.Stores{
		Tenants:       store,
		Scores:        store,
		Lifecycle:     store,
		Notifications: store,
		Audit:         store,
		Devices:       store,
		Billing:       store,
		Admins:        store,
	}, publisher)

	runner, err := otel.NewTracingRunner(job)
	if err != nil {
		return err
	}
	runWorker.SetRunner(runner)

	svc := app.NewTenantService(store, store, store, fsm.New(), publisher)

	if err := queue.Start(ctx); err != nil {
		return err
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("fleetpulse", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("fleetpulse", "0.1.0"))
	handler.Register(api, svc, runner, serviceToken)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("fleetpulse listening on :%s", port)
		log.Printf("API docs: http://localhost:%s/docs", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Printf("queue shutdown: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	log.Println("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

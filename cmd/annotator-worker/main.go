package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-content-annotator/internal/config"
	"github.com/tendant/simple-content-annotator/internal/handlers"
	"github.com/tendant/simple-content-annotator/pkg/runner"
)

func main() {
	// Configuration from environment (.env is loaded if present)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize runner: storage, detector, async backend
	r, err := runner.New(context.Background(), cfg, runner.WithRegisterer(reg))
	if err != nil {
		log.Fatalf("Failed to initialize annotator: %v", err)
	}

	log.Printf("✓ Annotation sink: %s", cfg.AnnotationSink)
	log.Printf("✓ Detector: %s %v (timeout %s)", cfg.DetectorCommand, cfg.DetectorArgs, cfg.DetectorTimeout)
	log.Printf("✓ Asset base dir: %s (wait %d x %s)", cfg.AssetBaseDir, cfg.AssetRechecks(), cfg.AssetWaitDelay)
	if r.Durable() {
		log.Printf("✓ DBOS runtime initialized")
		log.Printf("  Queue: %s", cfg.DBOSQueueName)
		log.Printf("  Concurrency: %d", cfg.WorkerConcurrency)
	} else {
		log.Printf("✓ Local worker pool initialized")
		log.Printf("  Workers: %d", cfg.WorkerConcurrency)
		log.Printf("  Queue size: %d", cfg.WorkerQueueSize)
	}

	// Create HTTP server
	mux := http.NewServeMux()
	asyncHandler := handlers.NewAsyncHandler(r, r.Ledger())

	// Register handlers
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/v1/annotate", asyncHandler.HandleAnnotateAsync)
	mux.HandleFunc("/v1/runs/", asyncHandler.HandleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Printf("✓ Registered async endpoints")

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Annotator worker starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout; in-flight runs get the detector timeout to finish
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DetectorTimeout+10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := r.Shutdown(ctx); err != nil {
		log.Printf("Workers forced to stop: %v", err)
	}

	log.Println("Server stopped")
}

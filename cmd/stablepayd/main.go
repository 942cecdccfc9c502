package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vitwit/stablepay"
	"github.com/vitwit/stablepay/config"
	"github.com/vitwit/stablepay/httpapi"
	"github.com/vitwit/stablepay/logger"
	"github.com/vitwit/stablepay/metrics"
	"github.com/vitwit/stablepay/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	memory := flag.Bool("memory", false, "keep invoices in memory instead of Postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.NewZapLogger(cfg.LogLevel)
	if s, ok := lg.(interface{ Sync() error }); ok {
		defer s.Sync()
	}

	opts := []stablepay.Option{stablepay.WithLogger(lg)}
	if *memory {
		opts = append(opts, stablepay.WithStore(storage.NewMemoryStore()))
	}

	var serverOpts []httpapi.Option
	if cfg.EnableMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		rec, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			log.Fatalf("register metrics: %v", err)
		}
		opts = append(opts, stablepay.WithMetrics(rec))
		serverOpts = append(serverOpts, httpapi.WithGatherer(reg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sp, err := stablepay.New(ctx, cfg, opts...)
	if err != nil {
		lg.Error("failed to start", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sp.Close()

	serverOpts = append(serverOpts,
		httpapi.WithLogger(lg),
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
		httpapi.WithRequestTimeout(cfg.DefaultTimeout+time.Minute),
	)
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           httpapi.NewServer(sp, serverOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		lg.Info("stablepay listening", map[string]any{
			"address": cfg.Address,
			"network": cfg.Client.Network,
			"version": stablepay.Version,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server error", map[string]any{"error": err})
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("forced shutdown", map[string]any{"error": err})
	}
}

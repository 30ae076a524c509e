// Command newsd serves a small news API through the stagehand runtime.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/stagehand/internal/telemetry"
	"github.com/tjfontaine/stagehand/pkg/stagehand"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rt, err := stagehand.New(
		stagehand.WithFileConfig(*configPath),
		stagehand.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create runtime: %v", err)
	}
	cfg := rt.Config()

	shutdown, err := telemetry.InitTracer(telemetry.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
		Pretty:      cfg.Telemetry.Pretty,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	eng := rt.Engine()
	if err := eng.AddMiddleware(poweredBy); err != nil {
		log.Fatalf("Failed to add middleware: %v", err)
	}
	var guards []stagehand.Middleware
	if a := rt.Authenticator(); a != nil {
		guards = append(guards, a.Middleware(eng.Mapping()))
	}
	if err := eng.AddRoute(newsRoutes(&newsStore{}, guards...)...); err != nil {
		log.Fatalf("Failed to add routes: %v", err)
	}

	if err := rt.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start runtime: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping runtime...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := rt.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// Package main runs the in-memory development backend.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mycafe/internal/config"
	"mycafe/internal/stub"
	"mycafe/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       config.GetEnv("LOG_LEVEL", "debug"),
		Development: config.GetEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	srv, err := stub.NewServer(stub.Options{
		JWTSecret:  config.GetEnv("STUB_JWT_SECRET", "mycafe-dev-secret"),
		TableCount: config.GetEnvInt("STUB_TABLE_COUNT", 8),
		Logger:     log,
	})
	if err != nil {
		log.Fatalw("failed to build stub server", "error", err)
	}

	port := config.GetEnv("STUB_PORT", "8000")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("stub backend starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down stub backend...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("stub backend stopped")
}

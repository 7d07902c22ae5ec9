// Package main runs the floor synchronization core against a backend and
// logs the table state as it changes. It is the headless harness the
// table view embeds.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mycafe/internal/client"
	"mycafe/internal/config"
	"mycafe/internal/core/session"
	"mycafe/internal/floor"
	"mycafe/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", config.GetEnv("MYCAFE_CONFIG", "mycafe.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Infow("starting floor core", "api", cfg.API.BaseURL, "poll_interval", cfg.Poll.Interval)

	sess := session.New()
	api, err := client.New(client.Config{
		BaseURL: cfg.API.BaseURL,
		Tokens:  sess,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		log.Fatalw("failed to build client", "error", err)
	}

	token := cfg.API.Token
	if token == "" {
		if cfg.API.Username == "" || cfg.API.Password == "" {
			log.Fatal("no token and no credentials configured; set MYCAFE_TOKEN or MYCAFE_USERNAME/MYCAFE_PASSWORD")
		}
		resp, err := api.Login(ctx, cfg.API.Username, cfg.API.Password)
		if err != nil {
			log.Fatalw("login failed", "error", err)
		}
		token = resp.AccessToken
	}
	if err := sess.Initialize(token); err != nil {
		log.Fatalw("failed to initialize session", "error", err)
	}
	defer sess.Teardown()
	if sub := sess.Subject(); sub != "" {
		log.Infow("session established", "subject", sub, "role", sess.Role(), "expires_at", sess.ExpiresAt())
	}

	controller := floor.NewController(floor.Config{
		Client:       api,
		Logger:       log,
		PollInterval: cfg.Poll.Interval,
	})
	controller.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down floor core...")
	controller.Stop()
	log.Info("floor core stopped")
}

//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/PitchMatch/internal/config"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
	"github.com/himanishpuri/PitchMatch/pkg/pitchmatch"
)

var (
	port           int
	dbPath         string
	allowedOrigins string
)

func main() {
	cfg, envLoaded := config.Load()

	flag.IntVar(&port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&dbPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.StringVar(&allowedOrigins, "origins", strings.Join(cfg.AllowedOrigins, ","), "Comma-separated list of allowed CORS origins (use * for all)")
	flag.Parse()

	log := logger.GetLogger()
	if envLoaded {
		log.Debugf("Loaded configuration from .env")
	}

	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	service, err := pitchmatch.NewService(
		pitchmatch.WithDBPath(dbPath),
		pitchmatch.WithLogger(log),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:             port,
		DBPath:           dbPath,
		AllowedOrigins:   origins,
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		SessionTTL:       cfg.SessionTTL,
		SessionOptions:   pitchmatch.SessionOptionsFromConfig(cfg),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"log"
	"os"

	"example.com/rawhttpd/internal/config"
	"example.com/rawhttpd/internal/logger"
	"example.com/rawhttpd/internal/response"
	"example.com/rawhttpd/internal/server"
)

func main() {
	cfg, err := configFromArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v\nUsage: %s <address> [document-root]", err, os.Args[0])
	}

	lg, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	responder, err := response.NewResponderFromConfig(cfg, lg)
	if err != nil {
		log.Fatalf("Failed to create responder: %v", err)
	}

	srv, err := server.NewServer(cfg, lg, responder)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	lg.Info("Starting server", logger.LogFields{
		"address":       *cfg.Server.Address,
		"document_root": responder.Root(),
	})
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// configFromArgs builds a defaulted configuration from the positional
// arguments. Without a document root the working directory is served.
func configFromArgs(args []string) (*config.Config, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("expected 1 or 2 arguments, got %d", len(args))
	}
	addr := args[0]
	cfg := &config.Config{
		Server: &config.ServerConfig{Address: &addr},
	}
	if len(args) == 2 {
		if args[1] == "" {
			return nil, fmt.Errorf("document root cannot be empty")
		}
		cfg.Server.DocumentRoot = args[1]
	}

	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

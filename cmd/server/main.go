package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"example.com/rawhttpd/internal/config"
	"example.com/rawhttpd/internal/logger"
	"example.com/rawhttpd/internal/response"
	"example.com/rawhttpd/internal/server"
)

var (
	configFilePath string
	documentRoot   string
)

func main() {
	flag.StringVar(&configFilePath, "config", "", "Path to the configuration file (JSON or TOML)")
	flag.StringVar(&documentRoot, "root", "", "Directory to serve; overrides server.document_root")
	flag.Parse()

	if configFilePath == "" {
		fmt.Fprintln(os.Stderr, "Error: Configuration file path must be provided via -config flag.")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", configFilePath, err)
	}
	if documentRoot != "" {
		cfg.Server.DocumentRoot = documentRoot
	}

	appLogger, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := appLogger.CloseLogFiles(); err != nil {
			log.Printf("Error closing log files during shutdown: %v", err)
		}
	}()

	responder, err := response.NewResponderFromConfig(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize responder", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}
	appLogger.Info("Serving directory", logger.LogFields{
		"document_root": responder.Root(),
		"config":        cfg.OriginalFilePath,
	})

	srv, err := server.NewServer(cfg, appLogger, responder)
	if err != nil {
		appLogger.Error("Failed to create server", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		appLogger.Error("Server exited with error", logger.LogFields{"error": err.Error()})
		_ = appLogger.CloseLogFiles()
		os.Exit(1)
	}
}

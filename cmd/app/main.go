package main

import (
	"flag"
	"log"
	"os"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/di"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s model_backend=%s port=%d", cfg.Environment, cfg.Model.Backend, cfg.Server.Port)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"waveconv/config"
	"waveconv/internal/worker"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env")
	}

	// Configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Config error: %s", err)
	}

	// Run
	ctx := context.Background()
	w := worker.NewWorker(ctx, cfg)
	if err := w.Run(ctx, cfg); err != nil {
		log.Fatalf("Worker error: %s", err)
	}
}

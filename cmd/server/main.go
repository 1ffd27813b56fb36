package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"waveconv/config"
	"waveconv/internal/server"

	_ "waveconv/cmd/server/docs"
)

// @title           WaveConv API
// @version         1.0
// @description     Converts uploaded audio and video into Telegram-compatible voice messages.

// @license.name  MIT

// @host      localhost:3000
// @BasePath  /

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
	s := server.NewServer(ctx, cfg)
	if err := s.Run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %s", err)
	}
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/PoluyanbIch/GoQuizBot/internal/app"
	"github.com/PoluyanbIch/GoQuizBot/internal/config"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	bot, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start bot: %v", err)
	}

	log.Println("🤖 Bot is starting...")
	if err := bot.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

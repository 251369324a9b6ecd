package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL      string
	WhatsAppStoreURL string
	OpenAIKey        string
	Port             string
	Env              string
	SweepSchedule    string
	SweepBatchSize   int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		WhatsAppStoreURL: os.Getenv("WHATSAPP_STORE_URL"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		Port:             os.Getenv("PORT"),
		Env:              os.Getenv("ENV"),
		SweepSchedule:    os.Getenv("SWEEP_SCHEDULE"),
	}

	// Default values
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.WhatsAppStoreURL == "" {
		// Default to main database if not specified
		cfg.WhatsAppStoreURL = cfg.DatabaseURL
	}
	if cfg.SweepSchedule == "" {
		// Cron expression with seconds field: every minute
		cfg.SweepSchedule = "0 * * * * *"
	}

	cfg.SweepBatchSize = 50
	if v := os.Getenv("SWEEP_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepBatchSize = n
		}
	}

	return cfg
}

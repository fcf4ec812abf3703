package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	RenderURL            string
	RenderDPMM           int
	LabelWidth           float64
	LabelHeight          float64
	PreviewDebounceMS    int
	RenderTimeoutSeconds int
	WorkerCount          int
	DatabaseURL          string
	LogLevel             string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		RenderURL:            getEnv("RENDER_URL", "http://api.labelary.com/v1"),
		RenderDPMM:           getEnvInt("RENDER_DPMM", 8),
		LabelWidth:           getEnvFloat("LABEL_WIDTH", 4),
		LabelHeight:          getEnvFloat("LABEL_HEIGHT", 6),
		PreviewDebounceMS:    getEnvInt("PREVIEW_DEBOUNCE_MS", 500),
		RenderTimeoutSeconds: getEnvInt("RENDER_TIMEOUT_SECONDS", 30),
		WorkerCount:          getEnvInt("WORKER_COUNT", 4),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

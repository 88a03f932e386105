package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"document-gateway/docflow/infra"

	"github.com/joho/godotenv"
)

type config struct {
	apiURL        string
	authToken     string
	rateWindow    time.Duration
	rateLimit     int
	documentCount int
	sendTimeout   time.Duration
	sendRPS       float64
	sendBurst     int
	logLevel      string
	drainTimeout  time.Duration

	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string

	statsEnabled bool
	statsPrefix  string
	statsTTL     time.Duration
	statsBucket  infra.StatsBucket
}

func readConfig() (config, error) {
	// .env é opcional; variáveis já exportadas têm precedência
	_ = godotenv.Load()

	cfg := config{}
	cfg.apiURL = getenvDefault("API_URL", infra.DefaultEndpoint)
	cfg.authToken = os.Getenv("AUTH_TOKEN")
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", time.Second)
	cfg.rateLimit = getenvIntDefault("RATE_LIMIT", 3)
	cfg.documentCount = getenvIntDefault("DOCUMENT_COUNT", 5)
	cfg.sendTimeout = getenvDurationDefault("SEND_TIMEOUT", 10*time.Second)
	// SEND_RPS espaça os envios dentro da janela; 0 desliga.
	cfg.sendRPS = getenvFloatDefault("SEND_RPS", 0)
	cfg.sendBurst = getenvIntDefault("SEND_BURST", 1)
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.drainTimeout = getenvDurationDefault("DRAIN_TIMEOUT", 30*time.Second)

	cfg.redisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisPrefix = getenvDefault("REDIS_PREFIX", "docflow:window")

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "docflow:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	bucket, err := infra.ParseStatsBucket(getenvDefault("STATS_BUCKET", "minute"))
	if err != nil {
		return config{}, fmt.Errorf("STATS_BUCKET: %w", err)
	}
	cfg.statsBucket = bucket

	if cfg.rateLimit < 1 {
		return config{}, errors.New("RATE_LIMIT must be >= 1")
	}
	if cfg.rateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.documentCount < 0 {
		return config{}, errors.New("DOCUMENT_COUNT must be >= 0")
	}
	if cfg.sendRPS < 0 {
		return config{}, errors.New("SEND_RPS must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

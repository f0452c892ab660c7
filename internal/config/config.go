package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// CollectCronSpec drives the periodic pipeline run, CleanupCronSpec the
	// nightly TTL sweep over stored objects.
	CollectCronSpec string
	CleanupCronSpec string

	HMACSecret string
	UserAgent  string

	RequestTimeout time.Duration
	RunTimeout     time.Duration

	SimilarityThreshold float64
	ClusterWindow       time.Duration
	DecayHalfLife       time.Duration
	DecayFloor          float64
	MinConfidence       float64

	StorageTTLDays int
	MaxPerSource   int
	Lookback       time.Duration

	// BrowserExtract enables the headless fallback extractor for sources
	// whose listing pages carry no usable excerpt.
	BrowserExtract bool
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=cryptowire password=cryptowire dbname=cryptowire port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		CollectCronSpec: getEnv("COLLECT_CRON_SPEC", "*/30 * * * *"),
		CleanupCronSpec: getEnv("CLEANUP_CRON_SPEC", "30 3 * * *"),

		HMACSecret: getEnv("HMAC_SHARED_SECRET", ""),
		UserAgent:  getEnv("USER_AGENT", "cryptowire-collector/1.0 (+contact@ozel.dev)"),

		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 12*time.Second),
		RunTimeout:     getEnvDuration("RUN_TIMEOUT", 120*time.Second),

		SimilarityThreshold: getEnvFloat("NEWS_SIMILARITY_THRESHOLD", 0.85),
		ClusterWindow:       getEnvDuration("NEWS_CLUSTER_WINDOW", 48*time.Hour),
		DecayHalfLife:       getEnvDuration("NEWS_DECAY_HALF_LIFE", 24*time.Hour),
		DecayFloor:          getEnvFloat("NEWS_DECAY_FLOOR", 0.25),
		MinConfidence:       getEnvFloat("NEWS_MIN_CONFIDENCE", 0.2),

		StorageTTLDays: getEnvInt("STORAGE_TTL_DEFAULT_DAYS", 7),
		MaxPerSource:   getEnvInt("MAX_ITEMS_PER_SOURCE", 50),
		Lookback:       getEnvDuration("NEWS_LOOKBACK", 12*time.Hour),

		BrowserExtract: getEnv("BROWSER_EXTRACT", "") == "1",
	}

	log.Printf("config loaded: port=%s collect=%s cleanup=%s ttl=%dd", cfg.AppPort, cfg.CollectCronSpec, cfg.CleanupCronSpec, cfg.StorageTTLDays)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: invalid int for %s, using default %d", key, def)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("config: invalid float for %s, using default %g", key, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("config: invalid duration for %s, using default %s", key, def)
	}
	return def
}

package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr         string
	StoreBackend string
	DataFile     string
	SeedFile     string
	DatabaseURL  string
	RedisURL     string
	CacheTTL     time.Duration
	CORSOrigin   string
	MaxBodyBytes int64
}

func Load() Config {
	return Config{
		Addr:         getenv("ODF_API_ADDR", ":8788"),
		StoreBackend: getenv("ODF_STORE", "file"),
		DataFile:     getenv("ODF_DATA_FILE", "./data/odf-data.json"),
		SeedFile:     getenv("ODF_SEED_FILE", "./data/seed.json"),
		DatabaseURL:  getenv("DATABASE_URL", "./data/odf-data.db"),
		// Redis - empty by default, entry cache disabled if not configured
		RedisURL:     getenv("REDIS_URL", ""),
		CacheTTL:     time.Duration(getenvInt("ODF_CACHE_TTL_SECONDS", 300)) * time.Second,
		CORSOrigin:   getenv("ODF_CORS_ORIGIN", "*"),
		MaxBodyBytes: int64(getenvInt("ODF_MAX_BODY_BYTES", 1<<20)),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

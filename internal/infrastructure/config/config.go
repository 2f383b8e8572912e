package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr            string
	LogLevel        string
	CORSAllowOrigin string

	// Record store. Empty DBPath keeps records in process memory.
	DBPath string

	// External load engine selection: "k6" (subprocess) or "remote".
	Engine    string
	K6Bin     string
	EngineURL string

	// Grace margin added to a run's duration before it is timed out.
	RunGraceSec int

	// Optional request-definition store for create-by-reference.
	RequestStoreURL string

	SSEPollIntervalMs int
}

func FromEnv() Config {
	cfg := Config{
		Addr:            getEnv("ADDR", ":9095"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
	}
	cfg.DBPath = getEnv("DB_PATH", "")
	cfg.Engine = getEnv("ENGINE", "k6")
	cfg.K6Bin = getEnv("K6_BIN", "k6")
	cfg.EngineURL = getEnv("ENGINE_URL", "")
	cfg.RunGraceSec = getEnvInt("RUN_GRACE_SEC", 30)
	cfg.RequestStoreURL = getEnv("REQUEST_STORE_URL", "")
	cfg.SSEPollIntervalMs = getEnvInt("SSE_POLL_INTERVAL_MS", 500)
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
	}
	return def
}

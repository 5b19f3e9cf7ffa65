// Package config reads the sidecar's settings from the environment, with
// an optional .env file layered underneath.
package config

import (
	"log/slog"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the armada sidecar.
type Config struct {
	SocketPath string
	LogLevel   slog.Level

	// DBPath is the SQLite file for command snapshots. Empty disables
	// persistence.
	DBPath           string
	SnapshotSchedule string

	// RedisURL enables publishing notifications to an external bus.
	RedisURL      string
	NotifyChannel string

	TickWorkers      int
	MaxBlockedTicks  int
	HistoryLimit     int
	NotifyMaxRetries int

	// Requests per second and burst allowed on one ipc connection.
	RateLimit float64
	RateBurst int
}

// Load reads .env files (missing ones are ignored) and then the process
// environment.
func Load(files ...string) Config {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return Config{
		SocketPath:       GetEnv("ARMADA_SOCKET", "/tmp/armada.sock"),
		LogLevel:         ParseLevel(GetEnv("LOG_LEVEL", "info")),
		DBPath:           GetEnv("ARMADA_DB_PATH", ""),
		SnapshotSchedule: GetEnv("SNAPSHOT_SCHEDULE", "@every 5m"),
		RedisURL:         GetEnv("REDIS_URL", ""),
		NotifyChannel:    GetEnv("NOTIFY_CHANNEL", "armada:notifications"),
		TickWorkers:      GetIntEnv("TICK_WORKERS", runtime.GOMAXPROCS(0)),
		MaxBlockedTicks:  GetIntEnv("MAX_BLOCKED_TICKS", 0),
		HistoryLimit:     GetIntEnv("HISTORY_LIMIT", 100),
		NotifyMaxRetries: GetIntEnv("NOTIFY_MAX_RETRIES", 3),
		RateLimit:        GetFloatEnv("IPC_RATE_LIMIT", 50),
		RateBurst:        GetIntEnv("IPC_RATE_BURST", 100),
	}
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

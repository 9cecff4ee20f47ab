package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPort                = 5050
	defaultHost                = "127.0.0.1"
	defaultProcessIntervalSecs = 5
	defaultJournalPath         = ":memory:"

	envPort            = "PORT"
	envHost            = "HOST"
	envProcessInterval = "PROCESS_INTERVAL_SECS"
	envLogLevel        = "LOG_LEVEL"
	envJournalPath     = "JOURNAL_PATH"

	// dotEnvFile is read from the working directory when present.
	dotEnvFile = ".env"
)

// Config holds application configuration loaded from a .env file and
// environment variables. Environment variables win over the file.
type Config struct {
	Port            int
	Host            string
	ProcessInterval time.Duration
	LogLevel        slog.Level
	JournalPath     string
}

// ListenAddr returns the host:port address the server binds to.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads configuration with sensible defaults. Unparsable numeric values
// fall back to their defaults; only a malformed .env file is an error.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(dotEnvFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", dotEnvFile, err)
	}

	for _, key := range []string{envPort, envHost, envProcessInterval, envLogLevel, envJournalPath} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := Config{
		Port:            parsePositive(v.GetString(envPort), defaultPort),
		Host:            defaultHost,
		ProcessInterval: time.Duration(parsePositive(v.GetString(envProcessInterval), defaultProcessIntervalSecs)) * time.Second,
		LogLevel:        parseLogLevel(v.GetString(envLogLevel)),
		JournalPath:     defaultJournalPath,
	}

	if s := v.GetString(envHost); s != "" {
		cfg.Host = s
	}
	if s := v.GetString(envJournalPath); s != "" {
		cfg.JournalPath = s
	}

	return cfg, nil
}

// parsePositive parses s as a positive integer, returning def otherwise.
func parsePositive(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

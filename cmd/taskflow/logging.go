package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"taskflow/internal/config"
)

// configureLogger installs a text logger at the flag level, falling back to
// the configured level. An invalid flag is an error; an invalid config value
// falls back to the default level with a warning.
func configureLogger(flagLevel, configLevel string) error {
	if strings.TrimSpace(flagLevel) != "" {
		level, err := parseLogLevel(flagLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q", flagLevel)
		}
		slog.SetDefault(newLogger(level))
		return nil
	}

	level, err := parseLogLevel(configLevel)
	if err != nil {
		level, _ = parseLogLevel(config.DefaultLogLevel)
		slog.SetDefault(newLogger(level))
		slog.Warn("invalid log level, using default", "value", configLevel, "default", config.DefaultLogLevel)
		return nil
	}
	slog.SetDefault(newLogger(level))
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fieldsign/internal/config"
)

const logLevelEnvKey = "FIELDSIGN_LOG_LEVEL"

// configureLogger picks the level from flag, env, then config, in that
// order, and installs the default text logger on stderr.
func configureLogger(flagLevel, configLevel string) error {
	raw := strings.TrimSpace(flagLevel)
	fromFlag := raw != ""
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv(logLevelEnvKey))
	}
	if raw == "" {
		raw = strings.TrimSpace(configLevel)
	}
	if raw == "" {
		raw = config.DefaultLogLevel
	}

	level, err := parseLogLevel(raw)
	if err != nil {
		if fromFlag {
			return fmt.Errorf("invalid --log-level %q", flagLevel)
		}
		fmt.Fprintf(os.Stderr, "warning: invalid log level %q; defaulting to %s\n", raw, config.DefaultLogLevel)
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

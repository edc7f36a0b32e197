package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"carlot/internal/config"
)

const (
	logLevelEnvKey  = "CARLOT_LOG_LEVEL"
	logFormatEnvKey = "CARLOT_LOG_FORMAT"
)

type levelSource struct {
	name  string
	value string
}

// configureLoggerForCLI installs the default logger writing to w. The first
// non-empty level among flag, env and config wins. A bad flag is an error;
// a bad env or config value falls back to info and yields a warning.
func configureLoggerForCLI(w io.Writer, flagLevel, configLevel string) ([]string, error) {
	var warnings []string

	level, err := parseLogLevel(config.DefaultLogLevel)
	if err != nil {
		return nil, err
	}
	for _, src := range []levelSource{
		{name: "--log-level", value: flagLevel},
		{name: logLevelEnvKey, value: os.Getenv(logLevelEnvKey)},
		{name: "log_level", value: configLevel},
	} {
		if strings.TrimSpace(src.value) == "" {
			continue
		}
		parsed, err := parseLogLevel(src.value)
		if err == nil {
			level = parsed
		} else if src.name == "--log-level" {
			return nil, fmt.Errorf("invalid --log-level %q", src.value)
		} else {
			warnings = append(warnings, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", src.name, src.value, config.DefaultLogLevel))
		}
		break
	}

	asJSON := false
	switch format := strings.ToLower(strings.TrimSpace(os.Getenv(logFormatEnvKey))); format {
	case "", "text":
	case "json":
		asJSON = true
	default:
		warnings = append(warnings, fmt.Sprintf("warning: invalid %s=%q; using text", logFormatEnvKey, format))
	}

	slog.SetDefault(newLogger(w, level, asJSON))
	return warnings, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
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

func newLogger(w io.Writer, level slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

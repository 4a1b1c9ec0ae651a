package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates the service logger. Development environments get console output.
func New(logLevel, appEnv string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, logLevel)
}

func NewWithWriter(out io.Writer, logLevel string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "merit").
		Logger()
}

func WithUser(logger zerolog.Logger, userID string) zerolog.Logger {
	return logger.With().Str("user_id", userID).Logger()
}

func WithCommunity(logger zerolog.Logger, communityID string) zerolog.Logger {
	return logger.With().Str("community_id", communityID).Logger()
}

func WithMigration(logger zerolog.Logger, name string, dryRun bool) zerolog.Logger {
	return logger.With().Str("migration", name).Bool("dry_run", dryRun).Logger()
}

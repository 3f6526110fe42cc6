package logger

import (
	"io"
	"os"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Initialize sets up the global logger with pretty console output and info level.
// It runs before configuration is loaded so config errors are logged too.
func Initialize() {
	// Use pretty console output for development
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Configure applies the loaded log settings to the global logger.
// The returned closer flushes the rotating file, if any.
func Configure(cfg config.LogConfig) io.Closer {
	var console io.Writer = os.Stdout
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		// The file always gets JSON so it can be shipped as-is
		writers = append(writers, file)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Caller().Logger()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if file == nil {
		return nopCloser{}
	}
	log.Info().Str("file", cfg.File).Msg("Writing logs to rotating file")
	return file
}

// Get returns the global logger
func Get() *zerolog.Logger {
	return &log.Logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

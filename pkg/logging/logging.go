package logging

import (
	"fmt"
	"log/slog"
	"os"
)

const (
	// KeyAppName is the attribute key for the application name.
	KeyAppName = "app"

	// KeyError is the attribute key for errors.
	KeyError = "err"

	// KeyDal is the attribute key for the data access layer name.
	KeyDal = "dal"

	// KeyGuild is the attribute key for a guild ID.
	KeyGuild = "guild_id"

	// KeyChannel is the attribute key for a channel ID.
	KeyChannel = "channel_id"

	// KeyUser is the attribute key for a user ID.
	KeyUser = "user_id"
)

// Name is the name of the application the logger is for.
type Name string

// Config is the configuration for a logger.
type Config struct {
	// name is the application name appended to every log line.
	name Name

	// level is the minimum level to log at.
	level slog.Level
}

// NewConfig creates a new logger configuration.
func NewConfig(name Name) *Config {
	return &Config{
		name:  name,
		level: slog.LevelDebug,
	}
}

// CommonLogger creates the common logger for the application.
func CommonLogger(c *Config) (*slog.Logger, error) {
	if c == nil {
		return nil, fmt.Errorf("nil logging config")
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: c.level,
	})

	l := slog.New(h).With(slog.String(KeyAppName, string(c.name)))
	slog.SetDefault(l)
	return l, nil
}

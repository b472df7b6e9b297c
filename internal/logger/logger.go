package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var colors = map[string]string{
	"trace": "\033[36m", // Cyan
	"debug": "\033[33m", // Yellow
	"info":  "\033[34m", // Blue
	"warn":  "\033[33m", // Yellow
	"error": "\033[31m", // Red
	"fatal": "\033[35m", // Magenta
	"panic": "\033[35m", // Magenta
}

// Init initializes the global logger with colored output
func Init(level string) {
	InitWithWriter(os.Stdout, level)
}

// InitWithWriter is Init with a custom destination.
func InitWithWriter(out io.Writer, level string) {
	output := zerolog.ConsoleWriter{
		Out:     out,
		NoColor: false,
		FormatLevel: func(i interface{}) string {
			level, ok := i.(string)
			if !ok {
				return "???"
			}
			color := colors[level]
			if color == "" {
				color = "\033[37m" // Default to white
			}
			return color + strings.ToUpper(level) + "\033[0m"
		},
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger().Level(ParseLevel(level))
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

package log

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process-wide logger. All packages log through the
// package-level event constructors below.
var Logger zerolog.Logger

func init() {
	// Console writer with short timestamps for operator-readable output.
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}

	Logger = zerolog.New(output).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()

	log.Logger = Logger
}

// Info starts an info-level event.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error starts an error-level event.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn starts a warning-level event.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal starts a fatal-level event and exits once sent.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// With returns a sub-logger tagged with a component name, for packages that
// emit many related events.
func With(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	Logger = Logger.Level(zerolog.DebugLevel)
	log.Logger = Logger
}

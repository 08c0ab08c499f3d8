package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a new logger instance
func New(serviceName string, environment string) *Logger {
	var output io.Writer = os.Stdout

	if environment == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return NewWithWriter(serviceName, output)
}

// NewWithWriter creates a JSON logger writing to w. Tests use it to capture output.
func NewWithWriter(serviceName string, w io.Writer) *Logger {
	logger := zerolog.New(w).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return &Logger{Logger: logger}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithRequestID returns a logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("request_id", requestID).Logger(),
	}
}

// WithCorrelationID returns a logger with the correlation ID attached
func (l *Logger) WithCorrelationID(correlationID string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("correlation_id", correlationID).Logger(),
	}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("component", component).Logger(),
	}
}

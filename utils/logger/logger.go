package logger

import "fmt"

// Logger provides a simple logging interface for the REST dispatcher and the client built on it.
// All implementations must be safe for concurrent use across multiple goroutines.
type Logger interface {
	// Type returns the type of the logger
	Type() LoggerType
	// Printf logs a formatted message
	Printf(format string, args ...any)
	// Println logs a message with a newline
	Println(message string)
	// Close closes the logger
	Close() error
}

type LoggerType string

const (
	LoggerTypeStdout LoggerType = "stdout"
	LoggerTypeFile   LoggerType = "file"
	LoggerTypeNoop   LoggerType = "noop"
	LoggerTypeWriter LoggerType = "writer"
	LoggerTypeMulti  LoggerType = "multi"
	LoggerTypePrefix LoggerType = "prefix"
)

// Config selects a logger from configuration
type Config struct {
	Type LoggerType `yaml:"type"`
	Path string     `yaml:"path"`
}

// New builds the logger described by cfg. An empty type means stdout.
func New(cfg Config) (Logger, error) {
	switch cfg.Type {
	case "", LoggerTypeStdout:
		return NewStdoutLogger(), nil
	case LoggerTypeNoop:
		return NewNoopLogger(), nil
	case LoggerTypeFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file logger requires a path")
		}
		return NewFileLogger(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown logger type %q", cfg.Type)
	}
}

// MultiLogger writes to multiple loggers simultaneously.
// Safe for concurrent use if all underlying loggers are safe.
type MultiLogger struct {
	loggers []Logger
}

var _ Logger = (*MultiLogger)(nil)

// NewMultiLogger creates a logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
	}
}

func (m *MultiLogger) Type() LoggerType {
	return LoggerTypeMulti
}

func (m *MultiLogger) Printf(format string, args ...any) {
	for _, logger := range m.loggers {
		logger.Printf(format, args...)
	}
}

func (m *MultiLogger) Println(message string) {
	for _, logger := range m.loggers {
		logger.Println(message)
	}
}

func (m *MultiLogger) Close() error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

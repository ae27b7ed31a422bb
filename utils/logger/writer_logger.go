package logger

import (
	"io"
	"log"
)

// WriterLogger timestamps lines onto an io.Writer. Microseconds are kept since rate-limit
// waits are sub-second. The stdout and file loggers are WriterLoggers with their own Type
// and Close. Thread safety depends on the underlying writer.
type WriterLogger struct {
	logger *log.Logger
	kind   LoggerType
}

var _ Logger = (*WriterLogger)(nil)

// NewWriterLogger creates a logger from any io.Writer
func NewWriterLogger(w io.Writer) *WriterLogger {
	return newWriterLogger(w, LoggerTypeWriter)
}

func newWriterLogger(w io.Writer, kind LoggerType) *WriterLogger {
	return &WriterLogger{
		logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		kind:   kind,
	}
}

func (w *WriterLogger) Type() LoggerType {
	return w.kind
}

func (w *WriterLogger) Printf(format string, args ...any) {
	w.logger.Printf(format, args...)
}

func (w *WriterLogger) Println(message string) {
	w.logger.Println(message)
}

func (w *WriterLogger) Close() error {
	return nil
}

package logger

import "os"

// StdoutLogger is the default sink of the demo binary. Safe for concurrent use.
type StdoutLogger struct {
	*WriterLogger
}

var _ Logger = (*StdoutLogger)(nil)

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{WriterLogger: newWriterLogger(os.Stdout, LoggerTypeStdout)}
}

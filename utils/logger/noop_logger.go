package logger

// NoopLogger discards everything. It is the default of every component that takes a logger.
type NoopLogger struct{}

var _ Logger = (*NoopLogger)(nil)

func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (n *NoopLogger) Type() LoggerType      { return LoggerTypeNoop }
func (n *NoopLogger) Printf(string, ...any) {}
func (n *NoopLogger) Println(string)        {}
func (n *NoopLogger) Close() error          { return nil }

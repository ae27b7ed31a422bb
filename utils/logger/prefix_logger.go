package logger

// PrefixLogger tags every line with a fixed prefix, e.g. "[rest]" or "[bucket GET /users/@me]".
// Closing it does not close the wrapped logger.
type PrefixLogger struct {
	prefix string
	next   Logger
}

var _ Logger = (*PrefixLogger)(nil)

// WithPrefix wraps next so every message starts with "[prefix] "
func WithPrefix(next Logger, prefix string) *PrefixLogger {
	if p, ok := next.(*PrefixLogger); ok {
		return &PrefixLogger{prefix: p.prefix + "[" + prefix + "] ", next: p.next}
	}
	return &PrefixLogger{prefix: "[" + prefix + "] ", next: next}
}

func (p *PrefixLogger) Type() LoggerType {
	return LoggerTypePrefix
}

func (p *PrefixLogger) Printf(format string, args ...any) {
	p.next.Printf(p.prefix+format, args...)
}

func (p *PrefixLogger) Println(message string) {
	p.next.Println(p.prefix + message)
}

func (p *PrefixLogger) Close() error {
	return nil
}

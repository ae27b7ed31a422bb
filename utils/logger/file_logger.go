package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLogger appends to a file, creating it and its directory when missing. O_APPEND keeps
// lines from several processes sharing one file whole.
type FileLogger struct {
	*WriterLogger
	file *os.File

	closeOnce sync.Once
	closeErr  error
}

var _ Logger = (*FileLogger)(nil)

func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileLogger{
		WriterLogger: newWriterLogger(file, LoggerTypeFile),
		file:         file,
	}, nil
}

// Path returns the file being written
func (f *FileLogger) Path() string {
	return f.file.Name()
}

// Close closes the file. Later calls return the first result.
func (f *FileLogger) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = f.file.Close()
	})
	return f.closeErr
}

package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// FileRecorder appends one JSON object per entry to a file.
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
	log  zerolog.Logger
}

// OpenFile opens path for appending, creating parent directories as needed.
func OpenFile(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return &FileRecorder{file: f, log: zerolog.New(zerolog.SyncWriter(f))}, nil
}

func (r *FileRecorder) Record(_ context.Context, e Entry) {
	rec := e.ToRecord()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	ev := r.log.Log().
		Time("time", rec.Time).
		Str("dbType", rec.DBType).
		Str("host", rec.Host).
		Int("port", rec.Port).
		Str("database", rec.Database).
		Str("username", rec.Username).
		Str("sql", rec.Statement).
		Bool("success", rec.Success).
		Int64("executionTime", rec.ElapsedMS)
	if rec.Message != "" {
		ev = ev.Str("message", rec.Message)
	}
	ev.Send()
}

// Close closes the file. Later entries are dropped.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

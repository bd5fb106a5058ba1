package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/olusolaa/connector/internal/event"
)

// JSONLSink appends events to date-stamped .jsonl files under a directory.
// Files roll over daily so exports stay manageable.
type JSONLSink struct {
	dir string

	mu      sync.Mutex
	file    *os.File
	curPath string
}

// NewJSONLSink creates the export directory if needed.
func NewJSONLSink(dir string) (*JSONLSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &JSONLSink{dir: dir}, nil
}

func (s *JSONLSink) Name() string {
	return "jsonl"
}

func (s *JSONLSink) Write(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	data, err := encodeJSONL(events)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("events-%s.jsonl", time.Now().UTC().Format("2006-01-02")))
	if s.file == nil || s.curPath != path {
		if s.file != nil {
			_ = s.file.Close()
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open export file: %w", err)
		}
		s.file = f
		s.curPath = path
	}

	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

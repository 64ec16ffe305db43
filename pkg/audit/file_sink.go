package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink appends decisions as JSON lines to a file, rotating when the
// file exceeds the configured size.
type FileSink struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	encoder  *json.Encoder
	maxSize  int64
	maxFiles int
	written  int64
}

// FileSinkConfig configures a FileSink.
type FileSinkConfig struct {
	Path     string // Audit log file path
	MaxSize  int64  // Max file size in bytes before rotation (default 100MB)
	MaxFiles int    // Rotated files to keep (default 10)
}

// DefaultFileSinkConfig returns the default configuration.
func DefaultFileSinkConfig() FileSinkConfig {
	return FileSinkConfig{
		Path:     "/var/log/accessgate/decisions.log",
		MaxSize:  100 * 1024 * 1024,
		MaxFiles: 10,
	}
}

// NewFileSink creates a file sink, creating the parent directory as needed.
func NewFileSink(config FileSinkConfig) (*FileSink, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = 100 * 1024 * 1024
	}
	if config.MaxFiles <= 0 {
		config.MaxFiles = 10
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("audit: creating log directory: %w", err)
	}

	s := &FileSink{
		path:     config.Path,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) open() error {
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("audit: opening log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("audit: stating log file: %w", err)
	}
	s.file = file
	s.encoder = json.NewEncoder(file)
	s.written = info.Size()
	return nil
}

// Record implements Sink.
func (s *FileSink) Record(_ context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.written >= s.maxSize {
		if err := s.rotate(); err != nil {
			return err
		}
	}
	before := s.written
	if err := s.encoder.Encode(d); err != nil {
		return fmt.Errorf("audit: writing decision: %w", err)
	}
	if info, err := s.file.Stat(); err == nil {
		s.written = info.Size()
	} else {
		s.written = before + 1
	}
	return nil
}

// rotate renames the current file with a timestamp suffix and opens a fresh
// one, pruning the oldest rotated files beyond maxFiles.
func (s *FileSink) rotate() error {
	if err := s.file.Close(); err != nil {
		return err
	}
	rotated := fmt.Sprintf("%s.%s", s.path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(s.path, rotated); err != nil {
		return fmt.Errorf("audit: rotating log file: %w", err)
	}
	s.prune()
	return s.open()
}

func (s *FileSink) prune() {
	matches, err := filepath.Glob(s.path + ".*")
	if err != nil || len(matches) <= s.maxFiles {
		return
	}
	// Glob output is sorted; timestamp suffixes sort oldest first.
	for _, old := range matches[:len(matches)-s.maxFiles] {
		os.Remove(old)
	}
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

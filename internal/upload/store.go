// Package upload keeps caller audio on local disk for the lifetime of one
// request.
package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/voicecall/internal/faults"
)

const DefaultDir = "uploads"

// Store writes uploads under a single directory. Every saved file gets a fresh
// uuid name, so concurrent requests never share a path.
type Store struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
}

func NewStore(dir string, maxBytes int64, logger *zap.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = DefaultDir
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("upload limit must be positive, got %d", maxBytes)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, logger: logger.With(zap.String("component", "upload"))}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save copies r to a new file. Input longer than the store limit is removed
// again and reported as a validation error.
func (s *Store) Save(r io.Reader) (*File, error) {
	path := filepath.Join(s.dir, "audio-"+uuid.NewString())
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}

	n, copyErr := io.Copy(out, io.LimitReader(r, s.maxBytes+1))
	closeErr := out.Close()

	file := &File{path: path, logger: s.logger}
	switch {
	case copyErr != nil:
		_ = file.Release()
		return nil, fmt.Errorf("write upload: %w", copyErr)
	case closeErr != nil:
		_ = file.Release()
		return nil, fmt.Errorf("close upload: %w", closeErr)
	case n > s.maxBytes:
		_ = file.Release()
		return nil, faults.Validation("Audio file too large")
	}

	s.logger.Debug("upload saved", zap.String("path", path), zap.Int64("bytes", n))
	return file, nil
}

// File is one saved upload. Release removes it; only the first call does
// any work.
type File struct {
	path   string
	logger *zap.Logger

	once       sync.Once
	releaseErr error
}

func (f *File) Path() string {
	if f == nil {
		return ""
	}
	return f.path
}

func (f *File) ReadAll() ([]byte, error) {
	if f == nil {
		return nil, errors.New("read upload: no file")
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return b, nil
}

// Release deletes the file from disk. A file that is already gone counts as
// released. Repeated calls return the first call's result.
func (f *File) Release() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		err := os.Remove(f.path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return
		}
		f.releaseErr = fmt.Errorf("remove upload: %w", err)
		if f.logger != nil {
			f.logger.Warn("upload cleanup failed", zap.String("path", f.path), zap.Error(err))
		}
	})
	return f.releaseErr
}

// Sweep removes saved uploads left in the store directory, for example after
// a crash. Call it only while no request is in flight.
func (s *Store) Sweep() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "audio-*"))
	if err != nil {
		return 0, fmt.Errorf("list uploads: %w", err)
	}
	removed := 0
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

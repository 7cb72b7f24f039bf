package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDir is the cache directory used when none is configured.
const DefaultDir = "~/.zoom/cache"

// FileStore keeps one JSON file per key under a base directory.
type FileStore struct {
	dir  string
	opts options
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// it does not exist. A leading "~" is expanded to the user's home directory.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	expanded, err := ExpandHome(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(expanded, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FileStore{dir: expanded, opts: newOptions(opts)}, nil
}

// Dir returns the resolved cache directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, safeName(key, true)+".json")
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string, dst any) bool {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false
		}
		return s.opts.miss(key, err)
	}

	if err := decodeEntry(data, s.opts.now(), dst); err != nil {
		return s.opts.miss(key, err)
	}
	return true
}

// Set implements Store. The entry is written to a temporary file in the same
// directory and renamed into place so readers never see a partial document.
func (s *FileStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := encodeEntry(key, value, ttl, s.opts.now())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+safeName(key, true)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to persist cache file: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

package offline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const recordExt = ".json"

// FileStore keeps each record in <dir>/<key>.json. Writes go through a
// temporary file and a rename, so readers never see a partial record.
type FileStore struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFileLogger sets the logger used for storage faults.
func WithFileLogger(l *slog.Logger) FileStoreOption {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &FileStore{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "offline_cache"), slog.String("backend", "file"))
	return s, nil
}

// Dir returns the directory holding the records.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+recordExt)
}

// Write implements Store.
func (s *FileStore) Write(ctx context.Context, key string, rec Record) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp record: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close record: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace record: %w", err)
	}
	return nil
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context, key string) (Record, bool) {
	if err := ValidateKey(key); err != nil {
		s.logger.WarnContext(ctx, "rejected cache key", slog.String("error", err.Error()))
		return Record{}, false
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "cache record unreadable",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return Record{}, false
	}

	rec, err := decodeRecord(data)
	if err != nil {
		s.logger.WarnContext(ctx, "cache record corrupt",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return Record{}, false
	}
	return rec, true
}

// PruneBefore implements Pruner. Stray temp files are removed as well.
func (s *FileStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".tmp"):
		case strings.HasSuffix(name, recordExt) && expired(strings.TrimSuffix(name, recordExt), cutoff):
		default:
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		if strings.HasSuffix(name, recordExt) {
			removed++
		}
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "pruned cache records",
			slog.Int("removed", removed),
			slog.String("cutoff", DayKey(cutoff)))
	}
	return removed, nil
}

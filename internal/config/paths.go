package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved filesystem locations used by the agent.
type Paths struct {
	BaseDir  string
	CacheDir string
	LogFile  string
}

// ResolvePaths makes the configured cache directory and log file absolute.
// Relative paths are taken from the working directory, matching how the
// CLI is usually run from the directory that holds its cache.
func (c *Config) ResolvePaths() (*Paths, error) {
	base, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return c.ResolvePathsFrom(base), nil
}

// ResolvePathsFrom resolves relative paths against base.
func (c *Config) ResolvePathsFrom(base string) *Paths {
	return &Paths{
		BaseDir:  base,
		CacheDir: resolve(base, c.Cache.Dir),
		LogFile:  resolve(base, c.Logging.FilePath),
	}
}

// EnsureDirectories creates the directories the agent writes into.
func (p *Paths) EnsureDirectories(withLogFile bool) error {
	dirs := []string{p.CacheDir}
	if withLogFile && p.LogFile != "" {
		dirs = append(dirs, filepath.Dir(p.LogFile))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

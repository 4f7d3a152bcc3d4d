package tools

import (
	"os"
	"path/filepath"
)

// FileCleaner removes the intermediate files a build leaves behind.
// Failures are logged, never fatal.
type FileCleaner struct {
	Log func(format string, args ...any)
}

func NewFileCleaner() *FileCleaner { return &FileCleaner{} }

func (c *FileCleaner) logf(format string, args ...any) {
	if c.Log != nil {
		c.Log(format, args...)
	}
}

// CleanupPaths removes every listed file or directory.
func (c *FileCleaner) CleanupPaths(paths []string, description string) {
	if len(paths) == 0 {
		return
	}
	c.logf("  Cleaning up %s files...", description)
	for _, p := range paths {
		c.removePath(p)
	}
}

// CleanupByPattern removes everything in dir matching the glob pattern.
func (c *FileCleaner) CleanupByPattern(dir, pattern string) {
	if _, err := os.Stat(dir); err != nil {
		return
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return
	}
	for _, m := range matches {
		c.removePath(m)
	}
}

func (c *FileCleaner) removePath(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			c.logf("    [WARNING] Could not clean up %s: %v", filepath.Base(path), err)
			return
		}
		c.logf("    Removed directory: %s", filepath.Base(path))
		return
	}
	if err := os.Remove(path); err != nil {
		c.logf("    [WARNING] Could not clean up %s: %v", filepath.Base(path), err)
		return
	}
	c.logf("    Removed file: %s", filepath.Base(path))
}

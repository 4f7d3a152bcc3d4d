package tools

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ResourceMerger overlays a custom resource tree onto the decompiled res
// directory. Files present in both trees are replaced only when their
// contents differ, so an unchanged overlay is a no-op.
type ResourceMerger struct {
	SourceRes string
	TargetRes string
	Log       func(format string, args ...any)
}

func NewResourceMerger(sourceRes, targetRes string) *ResourceMerger {
	return &ResourceMerger{SourceRes: sourceRes, TargetRes: targetRes}
}

func (m *ResourceMerger) logf(format string, args ...any) {
	if m.Log != nil {
		m.Log(format, args...)
	}
}

// ResourceDiff lists overlay files relative to the source tree: new files,
// files whose contents differ, and files present only in the target.
type ResourceDiff struct {
	New     []string
	Updated []string
	Missing []string
}

// Empty reports whether the overlay would change nothing.
func (d ResourceDiff) Empty() bool {
	return len(d.New) == 0 && len(d.Updated) == 0 && len(d.Missing) == 0
}

// Diff compares the overlay against the target without copying anything.
// A missing source tree yields an empty diff.
func (m *ResourceMerger) Diff() (ResourceDiff, error) {
	var diff ResourceDiff
	if !isDir(m.SourceRes) {
		return diff, nil
	}

	err := filepath.WalkDir(m.SourceRes, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(m.SourceRes, path)
		target := filepath.Join(m.TargetRes, rel)
		if _, err := os.Stat(target); err != nil {
			diff.New = append(diff.New, rel)
			return nil
		}
		same, err := sameContents(path, target)
		if err != nil {
			return err
		}
		if !same {
			diff.Updated = append(diff.Updated, rel)
		}
		return nil
	})
	if err != nil {
		return ResourceDiff{}, fmt.Errorf("compare resources: %w", err)
	}

	if isDir(m.TargetRes) {
		err = filepath.WalkDir(m.TargetRes, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, _ := filepath.Rel(m.TargetRes, path)
			if _, err := os.Stat(filepath.Join(m.SourceRes, rel)); err != nil {
				diff.Missing = append(diff.Missing, rel)
			}
			return nil
		})
		if err != nil {
			return ResourceDiff{}, fmt.Errorf("compare resources: %w", err)
		}
	}
	return diff, nil
}

// Merge copies new and changed overlay files into the target tree, creating
// directories as needed. Returns the number of files copied and the total
// file count in the target afterwards. Files only present in the target are
// left alone.
func (m *ResourceMerger) Merge() (copied, total int, err error) {
	if !isDir(m.SourceRes) {
		m.logf("  Source resources directory not found: %s", m.SourceRes)
		return 0, countFiles(m.TargetRes), nil
	}
	if err := os.MkdirAll(m.TargetRes, 0o755); err != nil {
		return 0, 0, fmt.Errorf("create %s: %w", m.TargetRes, err)
	}

	err = filepath.WalkDir(m.SourceRes, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(m.SourceRes, path)
		target := filepath.Join(m.TargetRes, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if _, statErr := os.Stat(target); statErr == nil {
			same, cmpErr := sameContents(path, target)
			if cmpErr != nil {
				return cmpErr
			}
			if same {
				return nil
			}
			m.logf("    Updated file: %s", rel)
		} else {
			m.logf("    Added file: %s", rel)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, 0, fmt.Errorf("merge resources: %w", err)
	}
	return copied, countFiles(m.TargetRes), nil
}

func sameContents(a, b string) (bool, error) {
	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func countFiles(dir string) int {
	count := 0
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}

package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestResourceMergerCopiesNewAndChanged(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFiles(t, src, map[string]string{
		"values/strings.xml":   "<resources>new</resources>",
		"drawable/icon.png":    "png-v2",
		"layout/unchanged.xml": "<layout/>",
	})
	writeFiles(t, dst, map[string]string{
		"drawable/icon.png":    "png-v1",
		"layout/unchanged.xml": "<layout/>",
		"values/colors.xml":    "<resources/>",
	})

	m := NewResourceMerger(src, dst)
	copied, total, err := m.Merge()
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if copied != 2 {
		t.Errorf("copied = %d, want 2 (new strings.xml, changed icon.png)", copied)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}

	data, err := os.ReadFile(filepath.Join(dst, "drawable/icon.png"))
	if err != nil || string(data) != "png-v2" {
		t.Errorf("icon.png = %q, %v", data, err)
	}
	// Target-only files survive the merge.
	if _, err := os.Stat(filepath.Join(dst, "values/colors.xml")); err != nil {
		t.Errorf("colors.xml removed: %v", err)
	}
}

func TestResourceMergerMissingSourceIsNoop(t *testing.T) {
	dst := t.TempDir()
	writeFiles(t, dst, map[string]string{"values/strings.xml": "<resources/>"})

	m := NewResourceMerger(filepath.Join(t.TempDir(), "absent"), dst)
	copied, total, err := m.Merge()
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if copied != 0 || total != 1 {
		t.Errorf("copied/total = %d/%d, want 0/1", copied, total)
	}
}

func TestResourceMergerDiff(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFiles(t, src, map[string]string{
		"values/strings.xml": "v2",
		"drawable/new.png":   "x",
	})
	writeFiles(t, dst, map[string]string{
		"values/strings.xml": "v1",
		"values/colors.xml":  "y",
	})

	m := NewResourceMerger(src, dst)
	diff, err := m.Diff()
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.New) != 1 || filepath.ToSlash(diff.New[0]) != "drawable/new.png" {
		t.Errorf("New = %v", diff.New)
	}
	if len(diff.Updated) != 1 || filepath.ToSlash(diff.Updated[0]) != "values/strings.xml" {
		t.Errorf("Updated = %v", diff.Updated)
	}
	if len(diff.Missing) != 1 || filepath.ToSlash(diff.Missing[0]) != "values/colors.xml" {
		t.Errorf("Missing = %v", diff.Missing)
	}
	if diff.Empty() {
		t.Error("Empty() = true")
	}
}

func TestResourceMergerDiffIdenticalTrees(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	files := map[string]string{"values/strings.xml": "same"}
	writeFiles(t, src, files)
	writeFiles(t, dst, files)

	m := NewResourceMerger(src, dst)
	diff, err := m.Diff()
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !diff.Empty() {
		t.Errorf("diff = %+v, want empty", diff)
	}
}

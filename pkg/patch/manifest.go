package patch

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var manifestPackageRe = regexp.MustCompile(`<manifest[^>]*\spackage\s*=\s*"([^"]+)"`)

// ManifestUpdater rewrites the package id in AndroidManifest.xml, including
// component names and authorities that embed the old package.
type ManifestUpdater struct {
	Path string

	oldPackage string
}

func NewManifestUpdater(path string) *ManifestUpdater {
	return &ManifestUpdater{Path: path}
}

// OldPackage returns the package id found before the last update.
func (m *ManifestUpdater) OldPackage() string { return m.oldPackage }

// UpdatePackage replaces every reference to the current package id with
// newPackage. A no-op when the manifest already uses newPackage.
func (m *ManifestUpdater) UpdatePackage(newPackage string) ([]Change, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("AndroidManifest.xml not found at %s: %w", m.Path, err)
	}
	content := strings.TrimPrefix(string(data), "\uFEFF")

	match := manifestPackageRe.FindStringSubmatch(content)
	if match == nil {
		return nil, fmt.Errorf("no package attribute found in %s", m.Path)
	}
	m.oldPackage = match[1]
	if m.oldPackage == newPackage {
		return nil, nil
	}

	content = replacePackageReferences(content, m.oldPackage, newPackage)
	if err := m.write(content); err != nil {
		return nil, err
	}
	return []Change{{Field: "package", Old: m.oldPackage, New: newPackage}}, nil
}

// replacePackageReferences swaps oldPkg for newPkg wherever it appears as a
// whole dotted identifier. Identifier boundaries keep a package like
// com.example from matching inside com.example2. A single pass over the
// source, so a new id that embeds the old one (com.example.mod) is safe.
func replacePackageReferences(content, oldPkg, newPkg string) string {
	var b strings.Builder
	b.Grow(len(content))
	for i := 0; i < len(content); {
		j := strings.Index(content[i:], oldPkg)
		if j < 0 {
			b.WriteString(content[i:])
			break
		}
		j += i
		end := j + len(oldPkg)
		if identBoundary(content, j-1) && identBoundary(content, end) {
			b.WriteString(content[i:j])
			b.WriteString(newPkg)
		} else {
			b.WriteString(content[i:end])
		}
		i = end
	}
	return b.String()
}

// identBoundary reports whether the byte at pos does not continue an
// identifier. Out-of-range positions count as boundaries.
func identBoundary(s string, pos int) bool {
	if pos < 0 || pos >= len(s) {
		return true
	}
	c := s[pos]
	return !(c == '_' ||
		'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9')
}

func (m *ManifestUpdater) write(content string) error {
	if !strings.HasPrefix(strings.TrimSpace(content), "<?xml") {
		content = "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" + content
	}
	if !strings.Contains(content, "xmlns:android=") {
		content = strings.Replace(content, "<manifest",
			`<manifest xmlns:android="http://schemas.android.com/apk/res/android"`, 1)
	}
	if err := os.WriteFile(m.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", m.Path, err)
	}
	return nil
}

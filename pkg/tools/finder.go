package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/All1eexx/ApkForge/pkg/paths"
)

// Found holds the tool jars and source APK located for one build.
type Found struct {
	ApktoolJar  string
	BaksmaliJar string
	SmaliJar    string
	SourceAPK   string
}

// FileFinder locates the jars named in the path table and the source APK
// inside the original game directory.
type FileFinder struct {
	Paths *paths.Table
	Log   func(format string, args ...any)
}

func NewFileFinder(table *paths.Table) *FileFinder {
	return &FileFinder{Paths: table}
}

func (f *FileFinder) logf(format string, args ...any) {
	if f.Log != nil {
		f.Log(format, args...)
	}
}

// FindAll resolves every required file. Missing configured jars are logged
// but tolerated; a missing source APK is fatal.
func (f *FileFinder) FindAll() (*Found, error) {
	f.logf("  Searching for required files...")

	found := &Found{
		ApktoolJar:  f.checkJar("apktool_jar", f.Paths.ApktoolJar),
		BaksmaliJar: f.checkJar("baksmali_jar", f.Paths.BaksmaliJar),
		SmaliJar:    f.checkJar("smali_jar", f.Paths.SmaliJar),
	}

	apk, err := f.findSourceAPK()
	if err != nil {
		return nil, err
	}
	found.SourceAPK = apk
	return found, nil
}

func (f *FileFinder) checkJar(name, path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		f.logf("  [WARNING] Configured %s not found: %s", name, path)
		return ""
	}
	return path
}

// findSourceAPK picks the first *.apk in the original directory, sorted by
// name so the choice is stable.
func (f *FileFinder) findSourceAPK() (string, error) {
	dir := f.Paths.OriginalDir
	if dir == "" {
		return "", fmt.Errorf("original game directory is not configured")
	}
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("original game directory not found: %s", dir)
	}

	apks, err := filepath.Glob(filepath.Join(dir, "*.apk"))
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(apks) == 0 {
		return "", fmt.Errorf("no APK files found in %s", dir)
	}
	sort.Strings(apks)
	f.logf("    Found source APK: %s", filepath.Base(apks[0]))
	return apks[0], nil
}

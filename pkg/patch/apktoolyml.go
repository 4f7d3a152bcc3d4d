// Package patch rewrites the metadata files inside a decompiled APK tree:
// apktool.yml, res/values/strings.xml, AndroidManifest.xml and
// BuildConfig.smali.
package patch

import (
	"fmt"
	"os"
	"strings"
)

// Change records one value rewritten by a patcher.
type Change struct {
	Field string
	Old   string
	New   string
}

// ApktoolYml edits version fields in apktool.yml. The file is rewritten
// line by line so apktool's own formatting and the unknown keys it emits
// survive untouched.
type ApktoolYml struct {
	path  string
	lines []string
}

func LoadApktoolYml(path string) (*ApktoolYml, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("apktool.yml not found at %s: %w", path, err)
	}
	return &ApktoolYml{path: path, lines: strings.SplitAfter(string(data), "\n")}, nil
}

// Values returns the current versionCode, versionName and apkFileName.
func (y *ApktoolYml) Values() map[string]string {
	values := map[string]string{}
	for _, line := range y.lines {
		stripped := strings.TrimSpace(line)
		for _, key := range []string{"versionCode", "versionName", "apkFileName"} {
			if strings.HasPrefix(stripped, key+":") {
				values[key] = extractYamlValue(stripped)
			}
		}
	}
	return values
}

func extractYamlValue(line string) string {
	_, rest, _ := strings.Cut(line, ":")
	return strings.Trim(strings.TrimSpace(rest), `"'`)
}

// Update rewrites the version fields and the output APK file name, which
// becomes "<appName> (<versionName>).apk". Returns the new file name, the
// changes applied, and whether anything was written.
func (y *ApktoolYml) Update(versionCode int, versionName, appName string) (string, []Change, error) {
	newAPKName := fmt.Sprintf("%s (%s).apk", appName, versionName)
	old := y.Values()

	var changes []Change
	updated := false
	for i, line := range y.lines {
		stripped := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(stripped, "versionCode:"):
			y.lines[i] = fmt.Sprintf("  versionCode: %d\n", versionCode)
			changes = append(changes, Change{"versionCode", old["versionCode"], fmt.Sprint(versionCode)})
			updated = true
		case strings.HasPrefix(stripped, "versionName:"):
			y.lines[i] = fmt.Sprintf("  versionName: %s\n", versionName)
			changes = append(changes, Change{"versionName", old["versionName"], versionName})
			updated = true
		case strings.HasPrefix(stripped, "apkFileName:"):
			y.lines[i] = fmt.Sprintf("  apkFileName: %s\n", newAPKName)
			changes = append(changes, Change{"apkFileName", old["apkFileName"], newAPKName})
			updated = true
		}
	}

	if updated {
		if err := os.WriteFile(y.path, []byte(strings.Join(y.lines, "")), 0o644); err != nil {
			return "", nil, fmt.Errorf("write %s: %w", y.path, err)
		}
	}
	return newAPKName, changes, nil
}

package patch

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	fieldVersionCode   = "VERSION_CODE:I = "
	fieldVersionName   = `VERSION_NAME:Ljava/lang/String; = "`
	fieldApplicationID = `APPLICATION_ID:Ljava/lang/String; = "`
	fieldBuildType     = `BUILD_TYPE:Ljava/lang/String; = "`
)

var smaliStringRe = regexp.MustCompile(`= "([^"]*)"`)

// SmaliUpdater rewrites the constant fields of a BuildConfig.smali file.
// Version codes are stored as hex literals, strings as quoted literals.
type SmaliUpdater struct {
	Path string

	lines     []string
	oldValues map[string]string
}

func LoadSmaliUpdater(path string) (*SmaliUpdater, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("BuildConfig.smali not found at %s: %w", path, err)
	}
	u := &SmaliUpdater{
		Path:      path,
		lines:     strings.SplitAfter(string(data), "\n"),
		oldValues: map[string]string{},
	}
	u.extractOldValues()
	return u, nil
}

// OldValues returns the field values found at load time.
func (u *SmaliUpdater) OldValues() map[string]string { return u.oldValues }

func (u *SmaliUpdater) extractOldValues() {
	for _, line := range u.lines {
		if strings.Contains(line, fieldVersionCode) {
			if _, hex, ok := strings.Cut(line, "0x"); ok {
				u.oldValues["VERSION_CODE"] = "0x" + strings.TrimSpace(hex)
			}
			continue
		}
		for name, marker := range map[string]string{
			"VERSION_NAME":   fieldVersionName,
			"APPLICATION_ID": fieldApplicationID,
			"BUILD_TYPE":     fieldBuildType,
		} {
			if strings.Contains(line, marker) {
				if m := smaliStringRe.FindStringSubmatch(line); m != nil {
					u.oldValues[name] = m[1]
				}
			}
		}
	}
}

// Update rewrites the four BuildConfig constants and reports the changes
// that were actually applied.
func (u *SmaliUpdater) Update(versionCode int, versionName, applicationID, buildType string) ([]Change, error) {
	versionHex := fmt.Sprintf("0x%x", versionCode)

	var changes []Change
	for i, line := range u.lines {
		switch {
		case strings.Contains(line, fieldVersionCode) && strings.Contains(line, "0x"):
			u.lines[i] = rewriteSuffix(line, fieldVersionCode, versionHex, false)
			changes = append(changes, Change{"VERSION_CODE", u.oldValues["VERSION_CODE"], versionHex})
		case strings.Contains(line, fieldVersionName):
			u.lines[i] = rewriteSuffix(line, fieldVersionName, versionName, true)
			changes = append(changes, Change{"VERSION_NAME", u.oldValues["VERSION_NAME"], versionName})
		case strings.Contains(line, fieldApplicationID):
			u.lines[i] = rewriteSuffix(line, fieldApplicationID, applicationID, true)
			changes = append(changes, Change{"APPLICATION_ID", u.oldValues["APPLICATION_ID"], applicationID})
		case strings.Contains(line, fieldBuildType):
			u.lines[i] = rewriteSuffix(line, fieldBuildType, buildType, true)
			changes = append(changes, Change{"BUILD_TYPE", u.oldValues["BUILD_TYPE"], buildType})
		}
	}

	if len(changes) > 0 {
		if err := os.WriteFile(u.Path, []byte(strings.Join(u.lines, "")), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", u.Path, err)
		}
	}
	return changes, nil
}

// rewriteSuffix replaces everything after the field marker with value,
// preserving the line's indentation and trailing newline.
func rewriteSuffix(line, marker, value string, quoted bool) string {
	prefix, _, _ := strings.Cut(line, marker)
	eol := ""
	if strings.HasSuffix(line, "\n") {
		eol = "\n"
	}
	if quoted {
		return prefix + marker + value + `"` + eol
	}
	return prefix + marker + value + eol
}

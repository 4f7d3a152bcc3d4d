package patch

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// appNameKeys lists the resource names that hold the visible application
// name, in lookup order. Different build systems use different keys.
var appNameKeys = []string{
	"app_name",
	"game_name",
	"godot_project_name_string",
	"project_name_string",
	"application_name",
	"app_title",
	"app_display_name",
}

var spaceRe = regexp.MustCompile(`\s+`)

// StringsUpdater rewrites the application name in res/values/strings.xml.
type StringsUpdater struct {
	Path string

	oldName string
	usedKey string
}

func NewStringsUpdater(path string) *StringsUpdater {
	return &StringsUpdater{Path: path, usedKey: "app_name"}
}

// OldName returns the app name found before the last update.
func (s *StringsUpdater) OldName() string { return s.oldName }

// UsedKey returns the resource key that was matched or added.
func (s *StringsUpdater) UsedKey() string { return s.usedKey }

func stringTagRe(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<string\s+name\s*=\s*"` + regexp.QuoteMeta(key) + `"\s*>(.*?)</string>`)
}

// UpdateAppName replaces the existing app-name string, or appends a new
// app_name entry when none of the known keys is present.
func (s *StringsUpdater) UpdateAppName(newName string) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("strings.xml not found at %s: %w", s.Path, err)
	}
	content := string(data)

	var re *regexp.Regexp
	for _, key := range appNameKeys {
		candidate := stringTagRe(key)
		if candidate.MatchString(content) {
			re = candidate
			s.usedKey = key
			break
		}
	}

	if re == nil {
		if err := s.addAppNameTag(content, newName); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added app_name tag with value: %q", newName), nil
	}

	match := re.FindStringSubmatch(content)
	s.oldName = strings.TrimSpace(spaceRe.ReplaceAllString(match[1], " "))
	if s.oldName == newName {
		return fmt.Sprintf("app_name already set to %q (using key: %s)", newName, s.usedKey), nil
	}

	replacement := fmt.Sprintf(`<string name="%s">%s</string>`, s.usedKey, newName)
	content = re.ReplaceAllString(content, replacement)
	if err := os.WriteFile(s.Path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", s.Path, err)
	}
	return fmt.Sprintf("Updated app_name from %q to %q (key: %s)", s.oldName, newName, s.usedKey), nil
}

func (s *StringsUpdater) addAppNameTag(content, newName string) error {
	entry := fmt.Sprintf("    <string name=\"app_name\">%s</string>\n", newName)
	if strings.Contains(content, "</resources>") {
		content = strings.Replace(content, "</resources>", entry+"</resources>", 1)
	} else {
		content += "\n" + entry
	}
	s.usedKey = "app_name"
	if err := os.WriteFile(s.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return nil
}

// Package paths resolves the directory and tool-jar layout of an ApkForge
// project: original/modded trees, source dirs, the Android SDK, and the
// keystore configuration file.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	defaultOriginalDir  = "OriginalGame"
	defaultModdedDir    = "ModdedGame"
	defaultSrcDir       = "src"
	defaultKeystoreFile = "keystore.yaml"
)

// Table is the resolved path layout for one project. All paths are absolute.
type Table struct {
	ProjectRoot string
	OriginalDir string
	ModdedDir   string
	SrcDir      string
	LibsDir     string
	AndroidSDK  string
	KeystoreCfg string

	ApktoolJar  string
	BaksmaliJar string
	SmaliJar    string
}

// Layout is the optional paths section of the project configuration.
type Layout struct {
	Directories struct {
		Original string `yaml:"original,omitempty"`
		Modded   string `yaml:"modded,omitempty"`
		Src      string `yaml:"src,omitempty"`
	} `yaml:"directories,omitempty"`
	Tools struct {
		Apktool    string `yaml:"apktool,omitempty"`
		Baksmali   string `yaml:"baksmali,omitempty"`
		Smali      string `yaml:"smali,omitempty"`
		AndroidSDK string `yaml:"android_sdk,omitempty"`
	} `yaml:"tools,omitempty"`
	Libs     string `yaml:"libs,omitempty"`
	Keystore string `yaml:"keystore,omitempty"`
}

// Resolve builds the path table for projectRoot from the configured layout.
// Relative entries resolve against the project root; ${VAR} references
// expand from the environment. The Android SDK falls back to environment
// variables and then well-known install locations.
func Resolve(projectRoot string, layout Layout) (*Table, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	t := &Table{ProjectRoot: root}
	t.OriginalDir = resolveOne(root, layout.Directories.Original, defaultOriginalDir)
	t.ModdedDir = resolveOne(root, layout.Directories.Modded, defaultModdedDir)
	t.SrcDir = resolveOne(root, layout.Directories.Src, defaultSrcDir)
	t.KeystoreCfg = resolveOne(root, layout.Keystore, defaultKeystoreFile)
	if layout.Libs != "" {
		t.LibsDir = resolveOne(root, layout.Libs, "")
	}

	t.ApktoolJar = resolveOne(root, layout.Tools.Apktool, "")
	t.BaksmaliJar = resolveOne(root, layout.Tools.Baksmali, "")
	t.SmaliJar = resolveOne(root, layout.Tools.Smali, "")

	if layout.Tools.AndroidSDK != "" {
		t.AndroidSDK = resolveOne(root, layout.Tools.AndroidSDK, "")
	} else {
		t.AndroidSDK = DetectSDK()
	}

	return t, nil
}

// resolveOne expands and absolutizes one configured path, using fallback
// when the configured value is empty. Returns "" when both are empty.
func resolveOne(root, value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if value == "" {
		return ""
	}
	value = expandEnv(value)
	if strings.HasPrefix(value, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

// expandEnv replaces ${VAR} references, leaving unknown variables intact.
func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "${" + name + "}"
	})
}

// DetectSDK locates the Android SDK from the environment or well-known
// install locations. Returns "" when nothing is found.
func DetectSDK() string {
	for _, env := range []string{"ANDROID_SDK_ROOT", "ANDROID_HOME", "ANDROID_SDK"} {
		if p := os.Getenv(env); p != "" {
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				return p
			}
		}
	}
	home, _ := os.UserHomeDir()
	var candidates []string
	switch runtime.GOOS {
	case "windows":
		candidates = []string{
			filepath.Join(home, "AppData", "Local", "Android", "Sdk"),
			`C:\Android\sdk`,
			`C:\android-sdk`,
			filepath.Join(home, "Android", "Sdk"),
		}
	case "darwin":
		candidates = []string{
			filepath.Join(home, "Library", "Android", "sdk"),
			"/usr/local/share/android-sdk",
			"/opt/android-sdk",
			filepath.Join(home, "Android", "sdk"),
		}
	default:
		candidates = []string{
			filepath.Join(home, "Android", "Sdk"),
			filepath.Join(home, "android-sdk"),
			"/usr/lib/android-sdk",
			"/usr/local/lib/android-sdk",
			"/opt/android-sdk",
			"/opt/google/android-sdk",
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return ""
}

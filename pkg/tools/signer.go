package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SigningKey carries the keystore material apksigner needs.
type SigningKey struct {
	Path        string
	Alias       string
	Password    string
	KeyPassword string
}

// ApkSigner aligns and signs APKs with the zipalign and apksigner binaries
// from the newest installed Android build-tools.
type ApkSigner struct {
	AndroidSDK string
	Exec       Executor
	Log        func(format string, args ...any)
}

func NewApkSigner(androidSDK string, exec Executor) *ApkSigner {
	if exec == nil {
		exec = RealExecutor{}
	}
	return &ApkSigner{AndroidSDK: androidSDK, Exec: exec}
}

func (s *ApkSigner) logf(format string, args ...any) {
	if s.Log != nil {
		s.Log(format, args...)
	}
}

// FindBuildTools returns the highest-versioned directory under
// <sdk>/build-tools.
func (s *ApkSigner) FindBuildTools() (string, error) {
	if s.AndroidSDK == "" {
		return "", fmt.Errorf("Android SDK path is not configured")
	}
	dir := filepath.Join(s.AndroidSDK, "build-tools")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("Android build-tools directory not found: %s", dir)
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() && looksLikeVersion(e.Name()) {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("no build-tools versions found in %s", dir)
	}
	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(versions[i], versions[j]) > 0
	})
	s.logf("  Using build-tools: %s", versions[0])
	return filepath.Join(dir, versions[0]), nil
}

func looksLikeVersion(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts[:2] {
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < 3; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

// LocateTools finds zipalign and apksigner inside buildTools, falling back
// to PATH when a tool is absent from the SDK.
func (s *ApkSigner) LocateTools(buildTools string) (zipalign, apksigner string, err error) {
	zipalign, err = s.findTool(buildTools, "zipalign", []string{"zipalign", "zipalign.exe", "zipalign.bat"})
	if err != nil {
		return "", "", err
	}
	apksigner, err = s.findTool(buildTools, "apksigner", []string{"apksigner", "apksigner.jar", "apksigner.bat", "apksigner.sh"})
	if err != nil {
		return "", "", err
	}
	return zipalign, apksigner, nil
}

func (s *ApkSigner) findTool(buildTools, name string, alternatives []string) (string, error) {
	for _, alt := range alternatives {
		p := filepath.Join(buildTools, alt)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		s.logf("  Found %s in PATH: %s", name, p)
		return p, nil
	}
	return "", fmt.Errorf("%s not found in %s or PATH", name, buildTools)
}

// Zipalign runs zipalign -f -p 4 on inputAPK.
func (s *ApkSigner) Zipalign(ctx context.Context, zipalign, inputAPK, outputAPK string) error {
	s.logf("  Zipaligning APK...")
	args := []string{"-f", "-p", "4", inputAPK, outputAPK}
	if _, err := runChecked(ctx, s.Exec, zipalign, args, ""); err != nil {
		return fmt.Errorf("zipalign: %w", err)
	}
	s.logf("  [OK] APK zipaligned")
	return nil
}

// Sign signs inputAPK with all four signature schemes enabled.
func (s *ApkSigner) Sign(ctx context.Context, apksigner, inputAPK, outputAPK string, key SigningKey) error {
	s.logf("  Signing APK...")
	command, base := signerInvocation(apksigner)
	args := append(base,
		"sign",
		"--ks", key.Path,
		"--ks-key-alias", key.Alias,
		"--ks-pass", "pass:"+key.Password,
		"--key-pass", "pass:"+key.KeyPassword,
		"--v1-signing-enabled", "true",
		"--v2-signing-enabled", "true",
		"--v3-signing-enabled", "true",
		"--v4-signing-enabled", "true",
		"--out", outputAPK,
		inputAPK,
	)
	if _, err := runChecked(ctx, s.Exec, command, args, ""); err != nil {
		return fmt.Errorf("APK signing failed: %w", err)
	}
	s.logf("  [OK] APK signed successfully")
	return nil
}

// Verify checks the signature of signedAPK.
func (s *ApkSigner) Verify(ctx context.Context, apksigner, signedAPK string) error {
	s.logf("  Verifying APK signature...")
	command, base := signerInvocation(apksigner)
	args := append(base, "verify", "--verbose", "--print-certs", signedAPK)
	if _, err := runChecked(ctx, s.Exec, command, args, ""); err != nil {
		return fmt.Errorf("APK verification failed: %w", err)
	}
	s.logf("  [OK] APK signature verified")
	return nil
}

// signerInvocation returns how to invoke apksigner: jar distributions go
// through java -jar, native wrappers run directly.
func signerInvocation(apksigner string) (command string, baseArgs []string) {
	if strings.EqualFold(filepath.Ext(apksigner), ".jar") {
		return "java", []string{"-jar", apksigner}
	}
	return apksigner, nil
}

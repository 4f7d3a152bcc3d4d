package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var multidexAttrRe = regexp.MustCompile(`\s+(?:android:)?multiDexEnabled="true"`)

// ApkBuilder repacks a decompiled tree into an unsigned APK with apktool.
type ApkBuilder struct {
	ApktoolJar string
	Exec       Executor
	Log        func(format string, args ...any)
}

func NewApkBuilder(apktoolJar string, exec Executor) *ApkBuilder {
	if exec == nil {
		exec = RealExecutor{}
	}
	return &ApkBuilder{ApktoolJar: apktoolJar, Exec: exec}
}

func (b *ApkBuilder) logf(format string, args ...any) {
	if b.Log != nil {
		b.Log(format, args...)
	}
}

// Build runs apktool b on moddedDir. When the build fails on a
// multiDexEnabled manifest attribute it strips the attribute and retries
// once.
func (b *ApkBuilder) Build(ctx context.Context, moddedDir, outputAPK string) error {
	if b.ApktoolJar == "" {
		return fmt.Errorf("apktool jar path is not configured")
	}
	b.logf("  Building APK with apktool...")

	args := []string{"-jar", b.ApktoolJar, "b", moddedDir, "-o", outputAPK}
	res, err := b.Exec.Execute(ctx, "java", args, "")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && strings.Contains(string(res.Stderr), "android:multiDexEnabled") {
		return b.retryWithoutMultidex(ctx, moddedDir, args)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("apktool build failed: %s", truncateOutput(res.Combined()))
	}
	return nil
}

func (b *ApkBuilder) retryWithoutMultidex(ctx context.Context, moddedDir string, args []string) error {
	b.logf("  [WARNING] Detected multiDexEnabled error, trying alternative approach...")

	manifest := filepath.Join(moddedDir, "AndroidManifest.xml")
	content, err := os.ReadFile(manifest)
	if err != nil {
		return fmt.Errorf("apktool build failed and manifest is unreadable: %w", err)
	}
	stripped := multidexAttrRe.ReplaceAll(content, nil)
	if err := os.WriteFile(manifest, stripped, 0o644); err != nil {
		return fmt.Errorf("rewrite manifest: %w", err)
	}
	b.logf("  Removed multiDexEnabled attribute, retrying build...")

	res, err := b.Exec.Execute(ctx, "java", args, "")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("apktool build (after removing multidex) failed: %s", truncateOutput(res.Combined()))
	}
	return nil
}

package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const errorOutputLimit = 500

// Decompiler unpacks an APK with apktool into a fresh output directory.
type Decompiler struct {
	ApktoolJar string
	Exec       Executor
	Log        func(format string, args ...any)
}

func NewDecompiler(apktoolJar string, exec Executor) *Decompiler {
	if exec == nil {
		exec = RealExecutor{}
	}
	return &Decompiler{ApktoolJar: apktoolJar, Exec: exec}
}

func (d *Decompiler) logf(format string, args ...any) {
	if d.Log != nil {
		d.Log(format, args...)
	}
}

// Decompile runs apktool d -f on sourceAPK, replacing outputDir if it
// already exists.
func (d *Decompiler) Decompile(ctx context.Context, sourceAPK, outputDir string) error {
	if d.ApktoolJar == "" {
		return fmt.Errorf("apktool jar path is not configured")
	}
	d.logf("  Running apktool...")

	if err := os.RemoveAll(outputDir); err != nil {
		return fmt.Errorf("clear output directory %s: %w", outputDir, err)
	}

	args := []string{"-jar", d.ApktoolJar, "d", "-f", sourceAPK, "-o", outputDir}
	d.logf("  Command: java %s", strings.Join(args, " "))

	res, err := d.Exec.Execute(ctx, "java", args, "")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("apktool failed with code %d:\n%s", res.ExitCode, truncateOutput(res.Combined()))
	}

	for _, line := range lastLines(string(res.Stdout), 3) {
		d.logf("    %s", line)
	}
	return nil
}

// truncateOutput caps long tool output for error messages.
func truncateOutput(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "No error output"
	}
	if len(s) > errorOutputLimit {
		return s[:errorOutputLimit] + "..."
	}
	return s
}

// lastLines returns up to n trailing non-empty lines of s.
func lastLines(s string, n int) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

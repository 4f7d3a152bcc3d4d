// Package tools wraps the external programs ApkForge drives: apktool,
// zipalign, apksigner and the JVM. Every wrapper talks through the
// Executor interface so builds can be tested without the real binaries.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Result captures everything observable about one finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Combined returns stdout and stderr concatenated for error reporting.
func (r *Result) Combined() string {
	if len(r.Stderr) == 0 {
		return string(r.Stdout)
	}
	if len(r.Stdout) == 0 {
		return string(r.Stderr)
	}
	return string(r.Stdout) + "\n" + string(r.Stderr)
}

// Executor runs an external command and reports its outcome. A non-zero
// exit code is returned in the Result, not as an error; errors mean the
// command could not be started or was cancelled.
type Executor interface {
	Execute(ctx context.Context, command string, args []string, dir string) (*Result, error)
}

// RealExecutor runs commands via os/exec.
type RealExecutor struct{}

func (RealExecutor) Execute(ctx context.Context, command string, args []string, dir string) (*Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("execute %q: %w", command, err)
		}
	}

	return &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// runChecked executes a command and converts a non-zero exit into an error
// carrying the tail of the combined output.
func runChecked(ctx context.Context, exe Executor, command string, args []string, dir string) (*Result, error) {
	res, err := exe.Execute(ctx, command, args, dir)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("%s exited with code %d: %s", command, res.ExitCode, tail(res.Combined(), 2000))
	}
	return res, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}

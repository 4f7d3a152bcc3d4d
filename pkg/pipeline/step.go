// Package pipeline implements the declarative build-step interpreter: a
// registry that resolves step descriptors to callables, a literal-only
// argument parser, a sequential executor with outcome classification, and a
// failure policy with operator confirmation.
package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a single pipeline step.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Glyph returns the console marker for a status.
func (s Status) Glyph() string {
	switch s {
	case StatusPending:
		return "[.]"
	case StatusRunning:
		return "[>]"
	case StatusSuccess:
		return "✓"
	case StatusFailed:
		return "✗"
	}
	return "?"
}

// Step tracks one descriptor through execution. Created pending, mutated by
// the executor while running, immutable once it reaches a terminal status.
type Step struct {
	Raw       string
	Status    Status
	Duration  time.Duration
	Err       string
	StartedAt time.Time
}

// NewStep creates a pending step from a raw descriptor.
func NewStep(raw string) *Step {
	return &Step{Raw: strings.TrimSpace(raw), Status: StatusPending}
}

// DisplayName is the descriptor without its argument list.
func (s *Step) DisplayName() string {
	name := s.Raw
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// SplitDescriptor separates a raw descriptor into its name and the literal
// argument text between the outer parentheses. hasArgs distinguishes "name"
// from "name()"; both yield empty argText.
func SplitDescriptor(raw string) (name, argText string, hasArgs bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false, fmt.Errorf("empty step descriptor")
	}
	open := strings.Index(raw, "(")
	if open < 0 {
		return raw, "", false, nil
	}
	if open == 0 {
		return "", "", false, fmt.Errorf("cannot parse step descriptor %q: missing name", raw)
	}
	if !strings.HasSuffix(raw, ")") {
		return "", "", false, fmt.Errorf("cannot parse step descriptor %q: unterminated argument list", raw)
	}
	name = strings.TrimSpace(raw[:open])
	argText = raw[open+1 : len(raw)-1]
	return name, argText, true, nil
}

// Record is the finalized outcome of one executed step, as persisted in the
// run report. Duration is wall-clock seconds.
type Record struct {
	Step     string  `json:"step"`
	Status   Status  `json:"status"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Policy is the failure-handling configuration for one run. Loaded before
// the run starts and immutable while it executes.
type Policy struct {
	StopOnError    bool `yaml:"stop_on_error"    json:"stop_on_error"`
	StopOnWarning  bool `yaml:"stop_on_warning"  json:"stop_on_warning"`
	TimeoutSeconds int  `yaml:"timeout_seconds"  json:"timeout_seconds"`
}

// DefaultPolicy returns the policy used when configuration is absent.
func DefaultPolicy() Policy {
	return Policy{StopOnError: true, StopOnWarning: false, TimeoutSeconds: 30}
}

// Verdict is the policy engine's continuation decision after a failed step.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictStop
)

// Confirmer asks the operator a yes/no question with a live countdown,
// auto-resolving to yes when no answer arrives before the timeout. In and
// Out default to stdin/stdout; tests inject both.
type Confirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm prompts the operator and waits up to timeout for a line of input.
// Returns true (continue) when the answer starts with "y" (any case) or the
// timeout elapses, false otherwise.
//
// Input is read on a background goroutine that fulfills a channel. The
// goroutine is abandoned, never joined: if the timeout wins, a later line on
// stdin is simply discarded with the goroutine. The foreground wakes once
// per second only to refresh the remaining-time counter; an early answer is
// observed immediately through the channel, not at the next tick.
func (c *Confirmer) Confirm(question string, timeout time.Duration) bool {
	in := c.In
	if in == nil {
		in = os.Stdin
	}
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	answerCh := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		line = strings.ToLower(strings.TrimSpace(line))
		if err != nil && line == "" {
			return // EOF without input: let the timeout decide
		}
		answerCh <- line
	}()

	remaining := int(timeout / time.Second)
	fmt.Fprintf(out, "\n%s (y/n) - Auto-continue in %ds: ", question, remaining)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case answer := <-answerCh:
			fmt.Fprintln(out)
			return strings.HasPrefix(answer, "y")
		case <-deadline.C:
			fmt.Fprintf(out, "\n[INFO] Timeout reached (%ds), continuing automatically...\n", int(timeout/time.Second))
			return true
		case <-ticker.C:
			remaining--
			if remaining > 0 {
				fmt.Fprintf(out, "\r%s (y/n) - Auto-continue in %ds: ", question, remaining)
			}
		}
	}
}

// policyEngine decides continuation after failures, owning the confirm
// prompt.
type policyEngine struct {
	policy    Policy
	confirm   *Confirmer
	out       io.Writer
	assumeYes bool
}

// Decide routes a just-failed step: continue silently-with-notice when the
// relevant stop flag is off, otherwise put the question to the operator.
func (p *policyEngine) Decide(isWarning bool) Verdict {
	stop := p.policy.StopOnError
	label := "error"
	if isWarning {
		stop = p.policy.StopOnWarning
		label = "warning"
	}
	if !stop {
		fmt.Fprintf(p.out, "  [INFO] Continuing despite %s (configured in pipeline_behavior).\n", label)
		return VerdictContinue
	}
	if p.assumeYes {
		fmt.Fprintf(p.out, "  [INFO] Continuing (--yes).\n")
		return VerdictContinue
	}
	timeout := time.Duration(p.policy.TimeoutSeconds) * time.Second
	if p.confirm.Confirm("Continue pipeline?", timeout) {
		return VerdictContinue
	}
	return VerdictStop
}

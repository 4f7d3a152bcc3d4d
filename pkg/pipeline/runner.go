package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// Runner drives an ordered list of step descriptors through resolution,
// argument parsing, execution and failure-policy routing, accumulating one
// record per attempted step. Steps execute strictly sequentially; a later
// step may assume all side effects of earlier ones.
type Runner struct {
	Registry  *Registry
	Policy    Policy
	Diags     *Diagnostics
	Confirm   *Confirmer
	Out       io.Writer
	AssumeYes bool

	// KeepInstances retains cached helper instances between runs. The
	// interactive shell sets it so consecutive commands share one
	// session's state, the way consecutive steps do inside a batch run.
	KeepInstances bool

	records []Record
}

// NewRunner creates a runner over a built registry. Console output goes to
// out (os.Stdout when nil).
func NewRunner(reg *Registry, policy Policy, diags *Diagnostics, out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	if diags == nil {
		diags = NewDiagnostics(out)
	}
	return &Runner{
		Registry: reg,
		Policy:   policy,
		Diags:    diags,
		Confirm:  &Confirmer{},
		Out:      out,
	}
}

// Records returns the finalized records of the last run, in execution order.
func (r *Runner) Records() []Record {
	return r.records
}

// ListAvailableSteps returns the sorted host step names for diagnostics and
// error hints.
func (r *Runner) ListAvailableSteps() []string {
	return r.Registry.HostSteps()
}

// SaveReport persists the last run's report to path.
func (r *Runner) SaveReport(path string) error {
	if err := BuildReport(r.records).Save(path); err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "\n✓ Report saved to: %s\n", path)
	return nil
}

// Run executes the descriptors in order and returns overall success: false
// if any step's final record is failed, regardless of whether the run
// continued past it. A stop verdict halts immediately; descriptors past the
// halt produce no records.
func (r *Runner) Run(ctx context.Context, descriptors []string) bool {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(r.Out, "\n%s\n", styleRule.Render(rule))
	fmt.Fprintf(r.Out, "%s\n", styleHeader.Render("   PIPELINE EXECUTION"))
	fmt.Fprintf(r.Out, "   Steps total: %d\n", len(descriptors))
	fmt.Fprintf(r.Out, "%s\n", styleRule.Render(rule))

	r.records = nil
	if !r.KeepInstances {
		r.Registry.Reset()
	}

	policy := &policyEngine{
		policy:    r.Policy,
		confirm:   r.Confirm,
		out:       r.Out,
		assumeYes: r.AssumeYes,
	}

	overall := true
	total := len(descriptors)

	for i, raw := range descriptors {
		step := NewStep(raw)
		fmt.Fprintf(r.Out, "\n[%d/%d] ▶ %s\n", i+1, total, step.DisplayName())

		keepGoing := r.executeStep(ctx, step, policy)
		if step.Status == StatusFailed {
			overall = false
		}
		if !keepGoing {
			fmt.Fprintf(r.Out, "\n[INFO] Pipeline stopped.\n")
			break
		}
	}

	r.printSummary()
	return overall
}

// executeStep runs one descriptor end to end and appends exactly one record.
// The returned bool is the continuation verdict.
func (r *Runner) executeStep(ctx context.Context, step *Step, policy *policyEngine) bool {
	fn, call, err := r.resolve(step.Raw)
	if err != nil {
		// Resolution and argument errors route exactly like execution
		// failures; no invocation is attempted.
		return r.failStep(step, err, false, policy)
	}

	step.Status = StatusRunning
	step.StartedAt = time.Now()
	err = fn(ctx, call)
	step.Duration = time.Since(step.StartedAt)

	warned := r.Diags.HasWarnings()
	r.Diags.Reset()

	if err != nil {
		var warn *WarningError
		isWarning := errors.As(err, &warn)
		return r.failStep(step, &StepExecutionError{Step: step.DisplayName(), Err: err}, isWarning, policy)
	}

	if warned && r.Policy.StopOnWarning {
		return r.failStep(step, fmt.Errorf("step completed with warnings"), true, policy)
	}

	step.Status = StatusSuccess
	r.records = append(r.records, Record{
		Step:     step.DisplayName(),
		Status:   StatusSuccess,
		Duration: step.Duration.Seconds(),
	})
	fmt.Fprintf(r.Out, "  %s Completed in %.2fs\n", statusStyled(StatusSuccess), step.Duration.Seconds())
	return true
}

// resolve produces the (callable, args) pair for a raw descriptor.
func (r *Runner) resolve(raw string) (StepFunc, Call, error) {
	name, argText, _, err := SplitDescriptor(raw)
	if err != nil {
		return nil, Call{}, err
	}
	args, kwargs, err := ParseArgs(argText)
	if err != nil {
		return nil, Call{}, err
	}
	fn, err := r.Registry.Resolve(name)
	if err != nil {
		return nil, Call{}, err
	}
	return fn, Call{Args: args, Kwargs: kwargs}, nil
}

// failStep finalizes a failed record and asks the policy engine whether to
// keep going.
func (r *Runner) failStep(step *Step, err error, isWarning bool, policy *policyEngine) bool {
	step.Status = StatusFailed
	step.Err = err.Error()

	if isWarning {
		fmt.Fprintf(r.Out, "  %s %v\n", styleWarn.Render("[WARNING]"), err)
	} else {
		fmt.Fprintf(r.Out, "  %s %v\n", styleFail.Render("[ERROR]"), err)
	}

	r.records = append(r.records, Record{
		Step:     step.DisplayName(),
		Status:   StatusFailed,
		Duration: step.Duration.Seconds(),
		Error:    step.Err,
	})

	if policy.Decide(isWarning) == VerdictContinue {
		return true
	}
	fmt.Fprintf(r.Out, "\n[INFO] Pipeline stopped by operator.\n")
	return false
}

// printSummary emits the aggregate block: one line per record with glyph and
// duration, then totals.
func (r *Runner) printSummary() {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(r.Out, "\n%s\n", styleRule.Render(rule))
	fmt.Fprintf(r.Out, "%s\n", styleHeader.Render("PIPELINE EXECUTION SUMMARY"))
	fmt.Fprintf(r.Out, "%s\n", styleRule.Render(rule))

	var totalTime float64
	success, failed := 0, 0
	for _, rec := range r.records {
		totalTime += rec.Duration
		switch rec.Status {
		case StatusSuccess:
			success++
		case StatusFailed:
			failed++
		}
		name := runewidth.FillRight(runewidth.Truncate(rec.Step, 35, "…"), 35)
		fmt.Fprintf(r.Out, "  %s %s (%.2fs)\n", statusStyled(rec.Status), name, rec.Duration)
		if rec.Error != "" {
			msg := rec.Error
			if len(msg) > 120 {
				msg = msg[:120] + "..."
			}
			fmt.Fprintf(r.Out, "       %s\n", msg)
		}
	}

	if len(r.records) > 0 {
		fmt.Fprintf(r.Out, "%s\n", styleRule.Render(strings.Repeat("-", 60)))
		fmt.Fprintf(r.Out, "  Total time : %.2fs\n", totalTime)
		fmt.Fprintf(r.Out, "  Steps      : %d total, %d OK, %d failed\n", len(r.records), success, failed)
	}
	fmt.Fprintf(r.Out, "%s\n", styleRule.Render(rule))
}

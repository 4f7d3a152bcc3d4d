package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv builds a runner whose host exposes three trivially scripted steps.
type testEnv struct {
	runner *Runner
	calls  []string
	out    bytes.Buffer
}

func newTestEnv(policy Policy, answer string) *testEnv {
	env := &testEnv{}
	reg := NewRegistry()
	diags := NewDiagnostics(io.Discard)

	record := func(name string, err error) StepFunc {
		return func(ctx context.Context, call Call) error {
			env.calls = append(env.calls, name)
			return err
		}
	}
	reg.RegisterHost("step_a", record("step_a", nil))
	reg.RegisterHost("step_b", record("step_b", errors.New("boom")))
	reg.RegisterHost("step_c", record("step_c", nil))
	reg.RegisterHost("warn_step", func(ctx context.Context, call Call) error {
		env.calls = append(env.calls, "warn_step")
		diags.Warnf("something odd")
		return nil
	})

	env.runner = NewRunner(reg, policy, diags, &env.out)
	env.runner.Confirm = &Confirmer{In: strings.NewReader(answer), Out: io.Discard}
	return env
}

func TestRunStopsAfterDeclinedFailure(t *testing.T) {
	env := newTestEnv(Policy{StopOnError: true, TimeoutSeconds: 30}, "n\n")

	ok := env.runner.Run(context.Background(), []string{"step_a", "step_b", "step_c"})
	if ok {
		t.Error("overall success = true, want false")
	}

	recs := env.runner.Records()
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2 (step_c never reached)", len(recs))
	}
	if recs[0].Step != "step_a" || recs[0].Status != StatusSuccess {
		t.Errorf("record 0 = %+v", recs[0])
	}
	if recs[1].Step != "step_b" || recs[1].Status != StatusFailed {
		t.Errorf("record 1 = %+v", recs[1])
	}
	for _, c := range env.calls {
		if c == "step_c" {
			t.Error("step_c executed after halt")
		}
	}
}

func TestRunContinuesWhenStopOnErrorOff(t *testing.T) {
	env := newTestEnv(Policy{StopOnError: false, TimeoutSeconds: 1}, "")

	ok := env.runner.Run(context.Background(), []string{"step_a", "step_b", "step_c"})
	if ok {
		t.Error("overall success = true, want false (step_b failed)")
	}
	if len(env.runner.Records()) != 3 {
		t.Fatalf("records = %d, want 3", len(env.runner.Records()))
	}
	// Execution must never have paused for confirmation.
	if strings.Contains(env.out.String(), "Continue pipeline?") {
		t.Error("run paused for confirmation despite stop_on_error=false")
	}
}

func TestRunFailedRecordKeepsErrorText(t *testing.T) {
	env := newTestEnv(Policy{StopOnError: false}, "")
	env.runner.Run(context.Background(), []string{"step_b"})

	rec := env.runner.Records()[0]
	if !strings.Contains(rec.Error, "boom") {
		t.Errorf("record error = %q, want to contain the callable's error", rec.Error)
	}
}

func TestRunWarningSuppressedWhenPolicyOff(t *testing.T) {
	env := newTestEnv(Policy{StopOnError: true, StopOnWarning: false, TimeoutSeconds: 30}, "")

	ok := env.runner.Run(context.Background(), []string{"warn_step", "step_a"})
	if !ok {
		t.Error("overall success = false, want true")
	}
	recs := env.runner.Records()
	if recs[0].Status != StatusSuccess {
		t.Errorf("warn_step record = %+v, want success under stop_on_warning=false", recs[0])
	}
	// Flag must not leak into the next step.
	if recs[1].Status != StatusSuccess {
		t.Errorf("step after warning = %+v, want success", recs[1])
	}
	if env.runner.Diags.HasWarnings() {
		t.Error("warnings flag still set after run")
	}
}

func TestRunWarningPromotedWhenPolicyOn(t *testing.T) {
	env := newTestEnv(Policy{StopOnError: true, StopOnWarning: true, TimeoutSeconds: 30}, "n\n")

	ok := env.runner.Run(context.Background(), []string{"warn_step", "step_a"})
	if ok {
		t.Error("overall success = true, want false")
	}
	recs := env.runner.Records()
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1 (halted at warning)", len(recs))
	}
	if recs[0].Status != StatusFailed || !strings.Contains(recs[0].Error, "completed with warnings") {
		t.Errorf("record = %+v, want failed with synthetic warning message", recs[0])
	}
}

func TestRunUnresolvableStepRoutedAsFailure(t *testing.T) {
	env := newTestEnv(Policy{StopOnError: false}, "")

	ok := env.runner.Run(context.Background(), []string{"step_x", "step_a"})
	if ok {
		t.Error("overall success = true, want false")
	}
	recs := env.runner.Records()
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Status != StatusFailed || !strings.Contains(recs[0].Error, "Did you mean") {
		t.Errorf("record = %+v, want failed with near-name hint", recs[0])
	}
}

func TestRunBadArgumentsFailBeforeInvocation(t *testing.T) {
	env := newTestEnv(Policy{StopOnError: false}, "")

	env.runner.Run(context.Background(), []string{"step_a(1 + 2)"})
	if len(env.calls) != 0 {
		t.Errorf("callable invoked despite argument parse failure: %v", env.calls)
	}
	rec := env.runner.Records()[0]
	if rec.Status != StatusFailed || !strings.Contains(rec.Error, "literal") {
		t.Errorf("record = %+v", rec)
	}
}

func TestRunPassesParsedArguments(t *testing.T) {
	var got Call
	reg := NewRegistry()
	reg.RegisterHost("takes_args", func(ctx context.Context, call Call) error {
		got = call
		return nil
	})
	r := NewRunner(reg, DefaultPolicy(), NewDiagnostics(io.Discard), io.Discard)

	if ok := r.Run(context.Background(), []string{`takes_args("in.apk", retries=2)`}); !ok {
		t.Fatal("run failed")
	}
	if len(got.Args) != 1 || got.Args[0] != "in.apk" {
		t.Errorf("args = %#v", got.Args)
	}
	if got.Kwargs["retries"] != 2 {
		t.Errorf("kwargs = %#v", got.Kwargs)
	}
}

func TestRunResetsInstancesByDefault(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterHelper("tools", counterHelper())
	r := NewRunner(reg, Policy{StopOnError: false}, NewDiagnostics(io.Discard), io.Discard)

	r.Run(context.Background(), []string{"tools.Counter.bump"})
	r.Run(context.Background(), []string{"tools.Counter.bump"})

	inst := reg.instances["tools.Counter"].(*counter)
	if inst.n != 1 {
		t.Errorf("counter = %d, want 1 (fresh instance per run)", inst.n)
	}
}

func TestRunKeepInstancesSharesStateAcrossRuns(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterHelper("tools", counterHelper())
	r := NewRunner(reg, Policy{StopOnError: false}, NewDiagnostics(io.Discard), io.Discard)
	r.KeepInstances = true

	r.Run(context.Background(), []string{"tools.Counter.bump"})
	r.Run(context.Background(), []string{"tools.Counter.bump"})

	inst := reg.instances["tools.Counter"].(*counter)
	if inst.n != 2 {
		t.Errorf("counter = %d, want 2 (one instance across runs)", inst.n)
	}
}

func TestSaveReport(t *testing.T) {
	env := newTestEnv(Policy{StopOnError: false}, "")
	env.runner.Run(context.Background(), []string{"step_a", "step_b"})

	path := filepath.Join(t.TempDir(), "pipeline_report.json")
	if err := env.runner.SaveReport(path); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	rep := BuildReport(env.runner.Records())
	if rep.SuccessCount != 1 || rep.FailedCount != 1 {
		t.Errorf("report counts = %d/%d, want 1/1", rep.SuccessCount, rep.FailedCount)
	}
}

func TestWarningErrorRoutesThroughWarningPolicy(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterHost("soft_fail", func(ctx context.Context, call Call) error {
		return Warnf("deprecated input")
	})
	r := NewRunner(reg, Policy{StopOnError: true, StopOnWarning: false, TimeoutSeconds: 30},
		NewDiagnostics(io.Discard), io.Discard)
	r.Confirm = &Confirmer{In: blockingReader{}, Out: io.Discard}

	// stop_on_warning=false: record fails but the run continues without a
	// prompt, even though stop_on_error is true.
	ok := r.Run(context.Background(), []string{"soft_fail"})
	if ok {
		t.Error("overall success = true, want false")
	}
	if r.Records()[0].Status != StatusFailed {
		t.Errorf("record = %+v", r.Records()[0])
	}
}

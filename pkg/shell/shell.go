// Package shell implements the interactive REPL for running pipeline steps
// one at a time against a live build host.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/All1eexx/ApkForge/pkg/forge"
	"github.com/All1eexx/ApkForge/pkg/pipeline"
)

// Shell is an interactive session over one build host. Steps typed at the
// prompt run through the same resolver and runner as pipeline builds.
type Shell struct {
	host   *forge.Forge
	runner *pipeline.Runner
	output io.Writer
	rl     *readline.Instance
}

// New creates a shell for the given host. The runner is configured to never
// prompt: a failed step returns to the prompt instead.
func New(host *forge.Forge, output io.Writer) *Shell {
	if output == nil {
		output = os.Stdout
	}
	policy := pipeline.Policy{StopOnError: false, StopOnWarning: false, TimeoutSeconds: 1}
	runner := pipeline.NewRunner(host.Registry(), policy, host.Diags, output)
	// One registry lifetime per session: helpers built by one command stay
	// live for the next, as they would between steps of a batch run.
	runner.KeepInstances = true
	return &Shell{host: host, runner: runner, output: output}
}

// Run starts the REPL loop. It returns on quit, EOF or interrupt.
func (s *Shell) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range []string{"run", "steps", "report", "help", "quit"} {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}
	runItem := readline.PcItem("run")
	for _, step := range s.runner.ListAvailableSteps() {
		runItem.Children = append(runItem.Children, readline.PcItem(step))
	}
	completer.Children[0] = runItem

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "apkforge> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	s.rl = rl
	defer rl.Close()

	fmt.Fprintf(s.output, "ApkForge shell, %d steps available\n", len(s.runner.ListAvailableSteps()))
	fmt.Fprintf(s.output, "Type 'help' for commands, 'run <step>' to execute a step.\n\n")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "run", "r":
			s.handleRun(ctx, strings.TrimSpace(rest))
		case "steps", "s":
			s.handleSteps()
		case "report":
			s.handleReport(strings.TrimSpace(rest))
		case "help", "?":
			s.handleHelp()
		case "quit", "q", "exit":
			return nil
		default:
			// bare step descriptors work without the run keyword
			s.handleRun(ctx, line)
		}
	}
}

func (s *Shell) handleRun(ctx context.Context, descriptor string) {
	if descriptor == "" {
		fmt.Fprintln(s.output, "Usage: run <step_name> or run <step_name>(args)")
		return
	}
	s.runner.Run(ctx, []string{descriptor})
}

func (s *Shell) handleSteps() {
	fmt.Fprintln(s.output, "Available steps:")
	for _, step := range s.runner.ListAvailableSteps() {
		fmt.Fprintf(s.output, "  %s\n", step)
	}
}

func (s *Shell) handleReport(path string) {
	if path == "" {
		path = "pipeline_report.json"
	}
	if len(s.runner.Records()) == 0 {
		fmt.Fprintln(s.output, "Nothing executed yet")
		return
	}
	if err := s.runner.SaveReport(path); err != nil {
		fmt.Fprintf(s.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.output, "Report saved to %s\n", path)
}

func (s *Shell) handleHelp() {
	fmt.Fprint(s.output, `Commands:
  run <step>      execute one step, e.g. run find_files
  <step>          same as run <step>
  steps           list available steps
  report [path]   save the execution report as JSON
  help            show this help
  quit            leave the shell
`)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/All1eexx/ApkForge/pkg/config"
	"github.com/All1eexx/ApkForge/pkg/forge"
	"github.com/All1eexx/ApkForge/pkg/paths"
	"github.com/All1eexx/ApkForge/pkg/pipeline"
	"github.com/All1eexx/ApkForge/pkg/shell"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets any
// variables that aren't already set in the environment. Lines are KEY=VALUE
// (or KEY="VALUE"). Comments (#) and blanks are skipped.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "apkforge",
	Short: "Android APK construction toolkit",
	Long:  "apkforge rebuilds Android APKs through a configurable step pipeline: decompile, patch metadata, repack, align and sign.",
}

var (
	flagProjectRoot string
	flagConfigFile  string
	flagReportPath  string
	flagAssumeYes   bool
	flagListSteps   bool
)

// --- build ---

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the pipeline from apkforge.yaml",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	host, cfg, err := setupHost()
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(host.Registry(), cfg.Behavior, host.Diags, os.Stdout)
	runner.AssumeYes = flagAssumeYes

	if flagListSteps || cfg.DebugPipeline {
		fmt.Println("\nAvailable pipeline steps:")
		for _, step := range runner.ListAvailableSteps() {
			fmt.Printf("  %s\n", step)
		}
		if flagListSteps {
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ok := runner.Run(ctx, cfg.Pipeline)

	if flagReportPath != "" || cfg.SavePipelineReport {
		reportPath := flagReportPath
		if reportPath == "" {
			reportPath = filepath.Join(host.Paths.ProjectRoot, "pipeline_report.json")
		}
		if err := runner.SaveReport(reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save report: %v\n", err)
		}
	}

	if !ok {
		os.Exit(1)
	}
	return nil
}

// --- steps ---

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the steps the pipeline can call",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _, err := setupHost()
		if err != nil {
			return err
		}
		for _, step := range host.Registry().HostSteps() {
			fmt.Println(step)
		}
		return nil
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [apkforge.yaml]",
	Short: "Validate a project configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if len(args) == 1 {
			path = args[0]
		}

		_, errs := config.ValidateFile(path)
		if len(errs) == 0 {
			fmt.Printf("✓ %s is valid\n", path)
			return nil
		}
		fmt.Printf("✗ %s has %d problem(s):\n", path, len(errs))
		for _, e := range errs {
			fmt.Printf("  %v\n", e)
		}
		os.Exit(1)
		return nil
	},
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for apkforge.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- shell ---

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell for running steps one at a time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _, err := setupHost()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return shell.New(host, os.Stdout).Run(ctx)
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("apkforge %s (%s)\n", version, commit)
	},
}

func configPath() string {
	if flagConfigFile != "" {
		return flagConfigFile
	}
	return filepath.Join(flagProjectRoot, config.DefaultFileName)
}

// setupHost loads the configuration, resolves the path table and builds the
// step host.
func setupHost() (*forge.Forge, *config.Project, error) {
	cfg, errs := config.ValidateFile(configPath())
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  %v\n", e)
		}
		return nil, nil, fmt.Errorf("configuration is invalid (%d problem(s))", len(errs))
	}

	table, err := paths.Resolve(flagProjectRoot, cfg.Paths)
	if err != nil {
		return nil, nil, err
	}

	diags := pipeline.NewDiagnostics(os.Stdout)
	host := forge.New(table, cfg, diags, nil, os.Stdout)
	return host, cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProjectRoot, "project", "C", ".", "project root directory")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to apkforge.yaml (default <project>/apkforge.yaml)")

	buildCmd.Flags().StringVar(&flagReportPath, "report", "", "write the execution report to this path")
	buildCmd.Flags().BoolVarP(&flagAssumeYes, "yes", "y", false, "continue past failures without prompting")
	buildCmd.Flags().BoolVar(&flagListSteps, "list-steps", false, "print available steps and exit")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(versionCmd)
}

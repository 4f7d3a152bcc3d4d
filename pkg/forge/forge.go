// Package forge is the build host: the object whose methods are the
// pipeline steps of an APK rebuild. Steps decompile the source APK, patch
// its metadata, repack, align and sign it, and report what changed.
package forge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/All1eexx/ApkForge/pkg/config"
	"github.com/All1eexx/ApkForge/pkg/paths"
	"github.com/All1eexx/ApkForge/pkg/patch"
	"github.com/All1eexx/ApkForge/pkg/pipeline"
	"github.com/All1eexx/ApkForge/pkg/tools"
)

const (
	unsignedAPKName = "unsigned.apk"
	alignedAPKName  = "aligned.apk"
	manifestFile    = "AndroidManifest.xml"
)

// Forge carries the state the steps share: resolved paths, configuration,
// located files and the produced APK stages.
type Forge struct {
	Paths    *paths.Table
	Config   *config.Project
	Keystore *config.Keystore
	Found    *tools.Found
	Diags    *pipeline.Diagnostics
	Exec     tools.Executor
	Out      io.Writer

	changed []patch.Change
	summary map[string]string

	unsignedAPK string
	alignedAPK  string
	signedAPK   string
}

// New builds a host for one project. exec and out may be nil; they default
// to the real command executor and stdout.
func New(table *paths.Table, cfg *config.Project, diags *pipeline.Diagnostics, exec tools.Executor, out io.Writer) *Forge {
	if exec == nil {
		exec = tools.RealExecutor{}
	}
	if out == nil {
		out = os.Stdout
	}
	if diags == nil {
		diags = pipeline.NewDiagnostics(out)
	}
	return &Forge{
		Paths:   table,
		Config:  cfg,
		Diags:   diags,
		Exec:    exec,
		Out:     out,
		summary: map[string]string{},
	}
}

func (f *Forge) printf(format string, args ...any) {
	fmt.Fprintf(f.Out, format+"\n", args...)
}

func (f *Forge) section(title string) {
	f.printf("")
	f.printf("%s", strings.Repeat("=", 40))
	f.printf("%s", title)
	f.printf("%s", strings.Repeat("=", 40))
}

func (f *Forge) warnf(format string, args ...any) {
	f.Diags.Warnf(format, args...)
}

// recordChange adds one row to the changed-values table.
func (f *Forge) recordChange(name, old, new string) {
	if old == "" {
		old = "?"
	}
	f.changed = append(f.changed, patch.Change{Field: name, Old: old, New: new})
}

// Changes returns the changed-values table accumulated so far.
func (f *Forge) Changes() []patch.Change { return f.changed }

// SignedAPK returns the path of the signed APK, or "" before signing.
func (f *Forge) SignedAPK() string { return f.signedAPK }

// requireFound guards steps that need find_files to have run.
func (f *Forge) requireFound() error {
	if f.Found == nil {
		return fmt.Errorf("required files not located yet; run find_files first")
	}
	return nil
}

// requireKeystore guards steps that need load_keystore_config to have run.
func (f *Forge) requireKeystore() error {
	if f.Keystore == nil {
		return fmt.Errorf("keystore not loaded; run load_keystore_config first")
	}
	return nil
}

// sanitizeFileName strips the characters Windows rejects in file names.
func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return -1
		}
		return r
	}, name)
}

// padName right-pads a display name for the changed-values table.
func padName(name string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(name, width, "…"), width)
}

func fileSizeMB(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return float64(info.Size()) / (1024 * 1024), nil
}

// firstMatch walks root and returns the first file whose base name equals
// name, in lexical walk order.
func firstMatch(root, name string) string {
	var found string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

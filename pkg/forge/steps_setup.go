package forge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/All1eexx/ApkForge/pkg/config"
	"github.com/All1eexx/ApkForge/pkg/pipeline"
	"github.com/All1eexx/ApkForge/pkg/tools"
)

// LoadKeystoreConfig reads and validates keystore.yaml.
func (f *Forge) LoadKeystoreConfig(ctx context.Context, call pipeline.Call) error {
	f.printf("")
	f.printf("Loading keystore configuration...")
	f.printf("  Project root: %s", f.Paths.ProjectRoot)
	f.printf("  Keystore config: %s", f.Paths.KeystoreCfg)

	ks, err := config.LoadKeystore(f.Paths.KeystoreCfg, f.Paths.ProjectRoot)
	if err != nil {
		return err
	}

	f.printf("[OK] Keystore: %s", filepath.Base(ks.Path))
	f.printf("[OK] Keystore alias: %s", ks.Alias)
	f.printf("[OK] Keystore config loaded and validated")
	f.Keystore = ks
	return nil
}

// FindFiles locates the tool jars and the source APK.
func (f *Forge) FindFiles(ctx context.Context, call pipeline.Call) error {
	f.printf("")
	f.printf("Finding required files...")

	finder := tools.NewFileFinder(f.Paths)
	finder.Log = f.printf
	found, err := finder.FindAll()
	if err != nil {
		return err
	}
	f.Found = found

	f.printf("  Apktool: %s", orUnset(found.ApktoolJar))
	f.printf("  Baksmali: %s", orUnset(found.BaksmaliJar))
	f.printf("  Smali: %s", orUnset(found.SmaliJar))
	f.printf("  Source APK: %s", found.SourceAPK)
	f.printf("[OK] All required files found")
	return nil
}

func orUnset(path string) string {
	if path == "" {
		return "<not configured>"
	}
	return path
}

// PrepareDecompileDirectory removes a stale modded directory so the next
// decompile starts clean.
func (f *Forge) PrepareDecompileDirectory(ctx context.Context, call pipeline.Call) error {
	f.printf("")
	f.printf("Preparing decompile directory...")
	if _, err := os.Stat(f.Paths.ModdedDir); err == nil {
		f.printf("  Removing existing directory: %s", f.Paths.ModdedDir)
		if err := os.RemoveAll(f.Paths.ModdedDir); err != nil {
			return fmt.Errorf("remove %s: %w", f.Paths.ModdedDir, err)
		}
	}
	f.printf("  [OK] Directory ready: %s", f.Paths.ModdedDir)
	return nil
}

// RunApktoolDecompile unpacks the source APK into the modded directory and
// verifies the result looks like a decompiled APK.
func (f *Forge) RunApktoolDecompile(ctx context.Context, call pipeline.Call) error {
	if err := f.requireFound(); err != nil {
		return err
	}
	f.printf("")
	f.printf("Running apktool decompile...")
	f.printf("  Source: %s", f.Found.SourceAPK)
	f.printf("  Output: %s", f.Paths.ModdedDir)

	d := tools.NewDecompiler(f.Found.ApktoolJar, f.Exec)
	d.Log = f.printf
	if err := d.Decompile(ctx, f.Found.SourceAPK, f.Paths.ModdedDir); err != nil {
		return err
	}
	f.printf("  [OK] Apktool decompile completed")

	if err := f.CountDecompiledFiles(ctx, pipeline.Call{}); err != nil {
		return err
	}
	return f.VerifyDecompileSuccess(ctx, pipeline.Call{})
}

// CountDecompiledFiles records how many files the decompile produced.
func (f *Forge) CountDecompiledFiles(ctx context.Context, call pipeline.Call) error {
	count := 0
	filepath.WalkDir(f.Paths.ModdedDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			count++
		}
		return nil
	})
	f.printf("  [OK] Extracted %d files", count)
	f.summary["decompiled_files"] = fmt.Sprint(count)
	return nil
}

// VerifyDecompileSuccess checks the modded tree has the directories every
// decompiled APK must contain.
func (f *Forge) VerifyDecompileSuccess(ctx context.Context, call pipeline.Call) error {
	var missing []string
	for _, dir := range []string{"res", "smali"} {
		if _, err := os.Stat(filepath.Join(f.Paths.ModdedDir, dir)); err != nil {
			missing = append(missing, dir)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("decompile failed: missing directories %v", missing)
	}
	f.printf("  [OK] Decompile verification passed")
	return nil
}

// CopyResources overlays the custom resource tree from src/main/res onto the
// decompiled res directory. Skipped with a notice when the project carries no
// custom resources.
func (f *Forge) CopyResources(ctx context.Context, call pipeline.Call) error {
	f.section("Merging resources...")

	sourceRes := filepath.Join(f.Paths.SrcDir, "main", "res")
	targetRes := filepath.Join(f.Paths.ModdedDir, "res")

	merger := tools.NewResourceMerger(sourceRes, targetRes)
	merger.Log = f.printf

	diff, err := merger.Diff()
	if err != nil {
		return err
	}
	if !diff.Empty() {
		f.printf("  Resource changes detected:")
		if len(diff.New) > 0 {
			f.printf("    New files: %d", len(diff.New))
		}
		if len(diff.Updated) > 0 {
			f.printf("    Updated files: %d", len(diff.Updated))
		}
		if len(diff.Missing) > 0 {
			f.printf("    Files only in target: %d", len(diff.Missing))
		}
	}

	copied, total, err := merger.Merge()
	if err != nil {
		return err
	}
	if copied > 0 {
		f.recordChange("Resources", "Original resources",
			fmt.Sprintf("Merged with custom resources (%d total files)", total))
	}
	f.printf("  [OK] Resources merged: %d new/updated, %d total", copied, total)
	return nil
}

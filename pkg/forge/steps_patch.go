package forge

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/All1eexx/ApkForge/pkg/patch"
	"github.com/All1eexx/ApkForge/pkg/pipeline"
)

// UpdateApktoolYml rewrites version fields and the output file name in
// apktool.yml.
func (f *Forge) UpdateApktoolYml(ctx context.Context, call pipeline.Call) error {
	f.printf("")
	f.printf("Updating apktool.yml...")
	ymlPath := filepath.Join(f.Paths.ModdedDir, "apktool.yml")
	f.printf("  Path: %s", ymlPath)

	yml, err := patch.LoadApktoolYml(ymlPath)
	if err != nil {
		return err
	}

	old := yml.Values()
	f.summary["old_version_code"] = old["versionCode"]
	f.summary["old_version_name"] = old["versionName"]
	f.summary["old_apk_file_name"] = old["apkFileName"]
	f.printf("  Old versionCode: %s", old["versionCode"])
	f.printf("  Old versionName: %s", old["versionName"])
	f.printf("  Old apkFileName: %s", old["apkFileName"])

	newName, changes, err := yml.Update(f.Config.VersionCode, f.Config.VersionName, f.Config.AppName)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		f.printf("[INFO] No changes needed in apktool.yml")
		return nil
	}

	f.printf("  New versionCode: %d", f.Config.VersionCode)
	f.printf("  New versionName: %s", f.Config.VersionName)
	f.printf("  New apkFileName: %s", newName)
	f.printf("[OK] apktool.yml updated")
	for _, c := range changes {
		f.recordChange("apktool.yml "+c.Field, c.Old, c.New)
	}
	return nil
}

// UpdateStrings rewrites the application name in the first strings.xml
// under res/. Missing files raise a warning, not a failure.
func (f *Forge) UpdateStrings(ctx context.Context, call pipeline.Call) error {
	f.printf("")
	f.printf("Updating strings.xml...")

	stringsPath := firstMatch(filepath.Join(f.Paths.ModdedDir, "res"), "strings.xml")
	if stringsPath == "" {
		f.warnf("strings.xml not found, skipping")
		return nil
	}
	rel, _ := filepath.Rel(f.Paths.ModdedDir, stringsPath)
	f.printf("  Path: %s", rel)

	updater := patch.NewStringsUpdater(stringsPath)
	msg, err := updater.UpdateAppName(f.Config.AppName)
	if err != nil {
		f.warnf("%v", err)
		return nil
	}
	if strings.Contains(strings.ToLower(msg), "already") {
		f.printf("  [INFO] %s", msg)
	} else {
		f.printf("  [OK] %s", msg)
	}
	f.recordChange("strings.xml app_name", updater.OldName(), f.Config.AppName)
	return nil
}

// UpdateManifest rewrites the package id in AndroidManifest.xml.
func (f *Forge) UpdateManifest(ctx context.Context, call pipeline.Call) error {
	f.printf("")
	f.printf("Updating %s...", manifestFile)
	manifestPath := filepath.Join(f.Paths.ModdedDir, manifestFile)
	f.printf("  Path: %s", manifestPath)

	updater := patch.NewManifestUpdater(manifestPath)
	changes, err := updater.UpdatePackage(f.Config.ApplicationID)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		f.printf("  [INFO] Package already set to %s", f.Config.ApplicationID)
		return nil
	}
	f.printf("[OK] %s updated", manifestFile)
	f.recordChange(manifestFile+" package", updater.OldPackage(), f.Config.ApplicationID)
	return nil
}

// UpdateBuildConfig rewrites the constants in BuildConfig.smali. APKs
// without a BuildConfig raise a warning, not a failure.
func (f *Forge) UpdateBuildConfig(ctx context.Context, call pipeline.Call) error {
	f.printf("")
	f.printf("Updating BuildConfig.smali...")

	smaliPath := f.findBuildConfigSmali()
	if smaliPath == "" {
		f.warnf("BuildConfig.smali not found, skipping")
		return nil
	}
	rel, _ := filepath.Rel(f.Paths.ModdedDir, smaliPath)
	f.printf("  Path: %s", rel)

	updater, err := patch.LoadSmaliUpdater(smaliPath)
	if err != nil {
		return err
	}
	old := updater.OldValues()
	for _, field := range []string{"VERSION_CODE", "VERSION_NAME", "APPLICATION_ID", "BUILD_TYPE"} {
		if v, ok := old[field]; ok {
			f.printf("  Old %s: %s", field, v)
		}
	}

	changes, err := updater.Update(f.Config.VersionCode, f.Config.VersionName, f.Config.ApplicationID, f.Config.BuildType)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		f.printf("  [INFO] No changes made to BuildConfig.smali")
		return nil
	}
	f.printf("[OK] BuildConfig.smali updated")
	for _, c := range changes {
		f.recordChange("BuildConfig "+c.Field, c.Old, c.New)
	}
	return nil
}

// findBuildConfigSmali searches the smali classes directories for a
// BuildConfig.smali file.
func (f *Forge) findBuildConfigSmali() string {
	entries, err := os.ReadDir(f.Paths.ModdedDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "smali") {
			continue
		}
		if found := firstMatch(filepath.Join(f.Paths.ModdedDir, e.Name()), "BuildConfig.smali"); found != "" {
			return found
		}
	}
	return ""
}

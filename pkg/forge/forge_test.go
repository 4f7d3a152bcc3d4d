package forge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/All1eexx/ApkForge/pkg/config"
	"github.com/All1eexx/ApkForge/pkg/paths"
	"github.com/All1eexx/ApkForge/pkg/pipeline"
	"github.com/All1eexx/ApkForge/pkg/tools"
)

// funcExecutor lets each test decide how fake commands behave.
type funcExecutor struct {
	calls [][]string
	fn    func(command string, args []string) (*tools.Result, error)
}

func (e *funcExecutor) Execute(_ context.Context, command string, args []string, _ string) (*tools.Result, error) {
	e.calls = append(e.calls, append([]string{command}, args...))
	if e.fn != nil {
		return e.fn(command, args)
	}
	return &tools.Result{}, nil
}

func testConfig() *config.Project {
	return &config.Project{
		VersionCode:   42,
		VersionName:   "1.5.0",
		AppName:       "Modded Game",
		ApplicationID: "com.example.modded",
		BuildType:     "release",
		Behavior:      pipeline.DefaultPolicy(),
	}
}

func newTestForge(t *testing.T, exec tools.Executor) (*Forge, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	table, err := paths.Resolve(root, paths.Layout{})
	if err != nil {
		t.Fatal(err)
	}
	table.ApktoolJar = filepath.Join(root, "apktool.jar")
	if err := os.WriteFile(table.ApktoolJar, []byte("jar"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	f := New(table, testConfig(), pipeline.NewDiagnostics(&out), exec, &out)
	return f, &out
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFindFiles(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	writeTree(t, f.Paths.OriginalDir, map[string]string{"game.apk": "apk"})

	if err := f.FindFiles(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("FindFiles: %v", err)
	}
	if f.Found == nil || filepath.Base(f.Found.SourceAPK) != "game.apk" {
		t.Errorf("Found = %+v", f.Found)
	}
}

func TestRunApktoolDecompileVerifiesTree(t *testing.T) {
	exec := &funcExecutor{}
	f, _ := newTestForge(t, exec)
	writeTree(t, f.Paths.OriginalDir, map[string]string{"game.apk": "apk"})
	if err := f.FindFiles(context.Background(), pipeline.Call{}); err != nil {
		t.Fatal(err)
	}

	exec.fn = func(command string, args []string) (*tools.Result, error) {
		// apktool would create the decompiled tree
		writeTree(t, f.Paths.ModdedDir, map[string]string{
			"res/values/strings.xml": "<resources/>",
			"smali/Main.smali":       ".class",
			"apktool.yml":            "versionCode: 1",
		})
		return &tools.Result{}, nil
	}
	if err := f.RunApktoolDecompile(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("RunApktoolDecompile: %v", err)
	}
	if f.summary["decompiled_files"] != "3" {
		t.Errorf("decompiled_files = %q", f.summary["decompiled_files"])
	}
}

func TestRunApktoolDecompileFailsOnIncompleteTree(t *testing.T) {
	exec := &funcExecutor{}
	f, _ := newTestForge(t, exec)
	writeTree(t, f.Paths.OriginalDir, map[string]string{"game.apk": "apk"})
	if err := f.FindFiles(context.Background(), pipeline.Call{}); err != nil {
		t.Fatal(err)
	}
	exec.fn = func(command string, args []string) (*tools.Result, error) {
		writeTree(t, f.Paths.ModdedDir, map[string]string{"res/values/strings.xml": "<resources/>"})
		return &tools.Result{}, nil
	}
	err := f.RunApktoolDecompile(context.Background(), pipeline.Call{})
	if err == nil || !strings.Contains(err.Error(), "smali") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunApktoolDecompileRequiresFindFiles(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	err := f.RunApktoolDecompile(context.Background(), pipeline.Call{})
	if err == nil || !strings.Contains(err.Error(), "find_files") {
		t.Fatalf("err = %v", err)
	}
}

func TestPrepareDecompileDirectoryRemovesStaleTree(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	writeTree(t, f.Paths.ModdedDir, map[string]string{"res/values/strings.xml": "<resources/>"})

	if err := f.PrepareDecompileDirectory(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("PrepareDecompileDirectory: %v", err)
	}
	if _, err := os.Stat(f.Paths.ModdedDir); !os.IsNotExist(err) {
		t.Error("stale modded dir should be removed")
	}
	// A missing directory is fine too.
	if err := f.PrepareDecompileDirectory(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestCopyResourcesMergesOverlay(t *testing.T) {
	f, out := newTestForge(t, &funcExecutor{})
	writeTree(t, filepath.Join(f.Paths.SrcDir, "main", "res"), map[string]string{
		"values/strings.xml": "<resources>custom</resources>",
	})
	writeTree(t, filepath.Join(f.Paths.ModdedDir, "res"), map[string]string{
		"values/strings.xml": "<resources>stock</resources>",
		"values/colors.xml":  "<resources/>",
	})

	if err := f.CopyResources(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("CopyResources: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(f.Paths.ModdedDir, "res/values/strings.xml"))
	if err != nil || !strings.Contains(string(data), "custom") {
		t.Errorf("strings.xml = %q, %v", data, err)
	}
	found := false
	for _, c := range f.Changes() {
		if c.Field == "Resources" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing Resources change in %v; output: %s", f.Changes(), out.String())
	}
}

func TestCopyResourcesWithoutOverlayIsNoop(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	writeTree(t, filepath.Join(f.Paths.ModdedDir, "res"), map[string]string{
		"values/strings.xml": "<resources/>",
	})

	if err := f.CopyResources(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("CopyResources: %v", err)
	}
	if len(f.Changes()) != 0 {
		t.Errorf("changes = %v, want none", f.Changes())
	}
}

func TestPatchStepsRecordChanges(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	writeTree(t, f.Paths.ModdedDir, map[string]string{
		"apktool.yml": "apkFileName: old.apk\nversionInfo:\n  versionCode: 41\n  versionName: 1.4.1\n",
		"res/values/strings.xml": `<resources><string name="app_name">Old Game</string></resources>`,
		"AndroidManifest.xml":    `<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.old.game"></manifest>`,
		"smali/com/old/game/BuildConfig.smali": `.field public static final APPLICATION_ID:Ljava/lang/String; = "com.old.game"
.field public static final BUILD_TYPE:Ljava/lang/String; = "debug"
.field public static final VERSION_CODE:I = 0x29
.field public static final VERSION_NAME:Ljava/lang/String; = "1.4.1"
`,
	})

	ctx := context.Background()
	for _, step := range []pipeline.StepFunc{f.UpdateApktoolYml, f.UpdateStrings, f.UpdateManifest, f.UpdateBuildConfig} {
		if err := step(ctx, pipeline.Call{}); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	fields := map[string]bool{}
	for _, c := range f.Changes() {
		fields[c.Field] = true
	}
	for _, want := range []string{
		"apktool.yml versionCode",
		"apktool.yml versionName",
		"apktool.yml apkFileName",
		"strings.xml app_name",
		"AndroidManifest.xml package",
		"BuildConfig VERSION_CODE",
		"BuildConfig APPLICATION_ID",
	} {
		if !fields[want] {
			t.Errorf("missing change %q in %v", want, f.Changes())
		}
	}
	if f.Diags.HasWarnings() {
		t.Error("no warnings expected on a complete tree")
	}
}

func TestUpdateStringsMissingFileWarns(t *testing.T) {
	f, out := newTestForge(t, &funcExecutor{})
	if err := os.MkdirAll(f.Paths.ModdedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := f.UpdateStrings(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("missing strings.xml should warn, not fail: %v", err)
	}
	if !f.Diags.HasWarnings() {
		t.Error("warning flag not set")
	}
	if !strings.Contains(out.String(), "strings.xml not found") {
		t.Errorf("output: %s", out.String())
	}
}

func TestUpdateBuildConfigMissingFileWarns(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	if err := os.MkdirAll(f.Paths.ModdedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := f.UpdateBuildConfig(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("missing BuildConfig should warn, not fail: %v", err)
	}
	if !f.Diags.HasWarnings() {
		t.Error("warning flag not set")
	}
}

func TestSignApkRequiresKeystore(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	err := f.SignApk(context.Background(), pipeline.Call{})
	if err == nil || !strings.Contains(err.Error(), "load_keystore_config") {
		t.Fatalf("err = %v", err)
	}
}

// installFakeSDK creates a build-tools dir with zipalign and apksigner
// stand-ins so LocateTools succeeds.
func installFakeSDK(t *testing.T, f *Forge) {
	t.Helper()
	sdk := filepath.Join(f.Paths.ProjectRoot, "sdk")
	bt := filepath.Join(sdk, "build-tools", "34.0.0")
	writeTree(t, bt, map[string]string{"zipalign": "#!/bin/sh", "apksigner": "#!/bin/sh"})
	f.Paths.AndroidSDK = sdk
}

func installKeystore(t *testing.T, f *Forge) {
	t.Helper()
	ksPath := filepath.Join(f.Paths.ProjectRoot, "release.jks")
	if err := os.WriteFile(ksPath, []byte("ks"), 0o600); err != nil {
		t.Fatal(err)
	}
	f.Keystore = &config.Keystore{Path: ksPath, Alias: "release", Password: "pw", KeyPassword: "kp"}
}

func TestSignApkSanitizesOutputName(t *testing.T) {
	exec := &funcExecutor{}
	f, _ := newTestForge(t, exec)
	installFakeSDK(t, f)
	installKeystore(t, f)
	f.Config.AppName = `Mod: "Game"`

	if err := f.SignApk(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("SignApk: %v", err)
	}
	base := filepath.Base(f.SignedAPK())
	if strings.ContainsAny(base, `<>:"/\|?*`) {
		t.Errorf("unsanitized name %q", base)
	}
	joined := strings.Join(exec.calls[0], " ")
	for _, want := range []string{"sign", "--ks-key-alias release", "pass:pw", "pass:kp"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %s", want, joined)
		}
	}
}

func TestBuildSignedAPKComposesPhases(t *testing.T) {
	exec := &funcExecutor{}
	f, _ := newTestForge(t, exec)
	installFakeSDK(t, f)
	installKeystore(t, f)
	writeTree(t, f.Paths.OriginalDir, map[string]string{"game.apk": "apk"})
	if err := f.FindFiles(context.Background(), pipeline.Call{}); err != nil {
		t.Fatal(err)
	}

	exec.fn = func(command string, args []string) (*tools.Result, error) {
		// the signer writes its --out file; later steps stat it
		for i, a := range args {
			if a == "--out" && i+1 < len(args) {
				writeTree(t, filepath.Dir(args[i+1]), map[string]string{filepath.Base(args[i+1]): "apk"})
			}
		}
		return &tools.Result{}, nil
	}

	if err := f.BuildSignedAPK(context.Background(), pipeline.Call{}); err != nil {
		t.Fatalf("BuildSignedAPK: %v", err)
	}
	if f.SignedAPK() == "" {
		t.Fatal("signed APK path not recorded")
	}

	var sawBuild, sawAlign, sawSign, sawVerify bool
	for _, call := range exec.calls {
		joined := strings.Join(call, " ")
		switch {
		case strings.Contains(joined, " b "):
			sawBuild = true
		case strings.Contains(joined, "zipalign"):
			sawAlign = true
		case strings.Contains(joined, " sign "):
			sawSign = true
		case strings.Contains(joined, " verify "):
			sawVerify = true
		}
	}
	if !sawBuild || !sawAlign || !sawSign || !sawVerify {
		t.Errorf("phases: build=%v align=%v sign=%v verify=%v", sawBuild, sawAlign, sawSign, sawVerify)
	}
}

func TestCleanupTempFiles(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	writeTree(t, f.Paths.ProjectRoot, map[string]string{
		"unsigned.apk": "x",
		"aligned.apk":  "x",
	})
	writeTree(t, f.Paths.ModdedDir, map[string]string{"temp_dex/classes.dex": "x"})

	if err := f.CleanupTempFiles(context.Background(), pipeline.Call{}); err != nil {
		t.Fatal(err)
	}
	for _, gone := range []string{
		filepath.Join(f.Paths.ProjectRoot, "unsigned.apk"),
		filepath.Join(f.Paths.ProjectRoot, "aligned.apk"),
		filepath.Join(f.Paths.ModdedDir, "temp_dex"),
	} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", gone)
		}
	}
}

func TestCleanupAllRemovesModdedDir(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	writeTree(t, f.Paths.ModdedDir, map[string]string{"res/values/strings.xml": "<resources/>"})

	if err := f.CleanupAll(context.Background(), pipeline.Call{}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(f.Paths.ModdedDir); !os.IsNotExist(err) {
		t.Error("modded dir should be removed")
	}
}

func TestRegistryResolvesAllHostSteps(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	reg := f.Registry()
	for _, name := range []string{
		"load_keystore_config", "find_files", "prepare_decompile_directory",
		"run_apktool_decompile", "count_decompiled_files", "verify_decompile_success",
		"copy_resources",
		"update_apktool_yml", "update_strings", "update_manifest", "update_build_config",
		"build_unsigned_apk", "build_signed_apk", "zipalign_apk", "sign_apk",
		"verify_signature", "cleanup_temp_files", "cleanup_all",
		"list_apks", "show_apk_info", "print_changed_values", "print_final_summary",
	} {
		if _, err := reg.Resolve(name); err != nil {
			t.Errorf("Resolve(%q): %v", name, err)
		}
	}
}

func TestRegistryResolvesHelperMethod(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	writeTree(t, f.Paths.ProjectRoot, map[string]string{"junk_unsigned.apk": "x"})
	reg := f.Registry()

	fn, err := reg.Resolve("tools.FileCleaner.cleanup_by_pattern")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	call := pipeline.Call{Args: []any{f.Paths.ProjectRoot, "*_unsigned.apk"}}
	if err := fn(context.Background(), call); err != nil {
		t.Fatalf("cleanup_by_pattern: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.Paths.ProjectRoot, "junk_unsigned.apk")); !os.IsNotExist(err) {
		t.Error("pattern cleanup did not run")
	}
}

func TestRegistryHelperConstructionFailsWithoutSDK(t *testing.T) {
	f, _ := newTestForge(t, &funcExecutor{})
	f.Paths.AndroidSDK = ""
	reg := f.Registry()

	_, err := reg.Resolve("tools.ApkSigner.verify")
	if err == nil {
		t.Fatal("construction should fail without an SDK")
	}
	var cerr *pipeline.ConstructionError
	if !errors.As(err, &cerr) {
		t.Errorf("err = %T %v", err, err)
	}
}

func TestPrintChangedValues(t *testing.T) {
	f, out := newTestForge(t, &funcExecutor{})
	f.recordChange("apktool.yml versionCode", "41", "42")
	if err := f.PrintChangedValues(context.Background(), pipeline.Call{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "41 -> 42") {
		t.Errorf("output: %s", out.String())
	}
}

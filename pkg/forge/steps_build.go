package forge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/All1eexx/ApkForge/pkg/pipeline"
	"github.com/All1eexx/ApkForge/pkg/tools"
)

// BuildUnsignedAPK repacks the modded directory into unsigned.apk.
func (f *Forge) BuildUnsignedAPK(ctx context.Context, call pipeline.Call) error {
	if err := f.requireFound(); err != nil {
		return err
	}
	f.section("Building unsigned APK...")

	f.unsignedAPK = filepath.Join(f.Paths.ProjectRoot, unsignedAPKName)
	builder := tools.NewApkBuilder(f.Found.ApktoolJar, f.Exec)
	builder.Log = f.printf
	if err := builder.Build(ctx, f.Paths.ModdedDir, f.unsignedAPK); err != nil {
		return err
	}
	f.printf("[OK] Unsigned APK: %s", filepath.Base(f.unsignedAPK))
	return nil
}

// ZipalignApk aligns the unsigned APK, or the APK given as first argument.
func (f *Forge) ZipalignApk(ctx context.Context, call pipeline.Call) error {
	f.section("Zipaligning APK...")

	input := call.Str(0, f.unsignedAPK)
	if input == "" {
		input = filepath.Join(f.Paths.ProjectRoot, unsignedAPKName)
	}
	f.alignedAPK = filepath.Join(f.Paths.ProjectRoot, alignedAPKName)

	signer := tools.NewApkSigner(f.Paths.AndroidSDK, f.Exec)
	signer.Log = f.printf
	buildTools, err := signer.FindBuildTools()
	if err != nil {
		return err
	}
	zipalign, _, err := signer.LocateTools(buildTools)
	if err != nil {
		return err
	}
	if err := signer.Zipalign(ctx, zipalign, input, f.alignedAPK); err != nil {
		return err
	}
	f.printf("[OK] Aligned APK: %s", filepath.Base(f.alignedAPK))
	return nil
}

// SignApk signs the aligned APK. Optional arguments override the input and
// output paths; the default output name is "<app_name> (<version>).apk".
func (f *Forge) SignApk(ctx context.Context, call pipeline.Call) error {
	if err := f.requireKeystore(); err != nil {
		return err
	}
	f.section("Signing APK...")

	input := call.Str(0, f.alignedAPK)
	if input == "" {
		input = filepath.Join(f.Paths.ProjectRoot, alignedAPKName)
	}
	output := call.Str(1, "")
	if output == "" {
		name := sanitizeFileName(fmt.Sprintf("%s (%s).apk", f.Config.AppName, f.Config.VersionName))
		output = filepath.Join(f.Paths.ProjectRoot, name)
	}
	f.signedAPK = output

	signer := tools.NewApkSigner(f.Paths.AndroidSDK, f.Exec)
	signer.Log = f.printf
	buildTools, err := signer.FindBuildTools()
	if err != nil {
		return err
	}
	_, apksigner, err := signer.LocateTools(buildTools)
	if err != nil {
		return err
	}
	key := tools.SigningKey{
		Path:        f.Keystore.Path,
		Alias:       f.Keystore.Alias,
		Password:    f.Keystore.Password,
		KeyPassword: f.Keystore.KeyPassword,
	}
	if err := signer.Sign(ctx, apksigner, input, f.signedAPK, key); err != nil {
		return err
	}
	f.printf("[OK] Signed APK: %s", filepath.Base(f.signedAPK))
	return nil
}

// VerifySignature checks the signature of the signed APK, or of the APK
// given as first argument.
func (f *Forge) VerifySignature(ctx context.Context, call pipeline.Call) error {
	f.section("Verifying APK signature...")

	apkPath := call.Str(0, f.signedAPK)
	if apkPath == "" {
		return fmt.Errorf("no signed APK found")
	}
	if _, err := os.Stat(apkPath); err != nil {
		return fmt.Errorf("no signed APK found at %s", apkPath)
	}

	signer := tools.NewApkSigner(f.Paths.AndroidSDK, f.Exec)
	signer.Log = f.printf
	buildTools, err := signer.FindBuildTools()
	if err != nil {
		return err
	}
	_, apksigner, err := signer.LocateTools(buildTools)
	if err != nil {
		return err
	}
	if err := signer.Verify(ctx, apksigner, apkPath); err != nil {
		return err
	}
	f.printf("[OK] Signature verified for %s", filepath.Base(apkPath))
	return nil
}

// BuildSignedAPK runs the whole packaging phase: build, align, sign,
// verify, clean up.
func (f *Forge) BuildSignedAPK(ctx context.Context, call pipeline.Call) error {
	for _, step := range []pipeline.StepFunc{
		f.BuildUnsignedAPK,
		f.ZipalignApk,
		f.SignApk,
		f.VerifySignature,
		f.CleanupTempFiles,
	} {
		if err := step(ctx, pipeline.Call{}); err != nil {
			return err
		}
	}
	return nil
}

// CleanupTempFiles removes the intermediate APKs and the scratch
// directories a build leaves inside the modded tree.
func (f *Forge) CleanupTempFiles(ctx context.Context, call pipeline.Call) error {
	f.section("Cleaning up temporary files...")

	cleaner := tools.NewFileCleaner()
	cleaner.Log = f.printf

	targets := []string{
		filepath.Join(f.Paths.ProjectRoot, unsignedAPKName),
		filepath.Join(f.Paths.ProjectRoot, alignedAPKName),
	}
	var existing []string
	for _, t := range targets {
		if _, err := os.Stat(t); err == nil {
			existing = append(existing, t)
		}
	}
	if len(existing) > 0 {
		cleaner.CleanupPaths(existing, "temporary")
	} else {
		f.printf("  [i] No temporary files to clean up")
	}

	cleaner.CleanupPaths([]string{
		filepath.Join(f.Paths.ModdedDir, "temp_classes"),
		filepath.Join(f.Paths.ModdedDir, "temp_dex"),
		filepath.Join(f.Paths.ModdedDir, "temp_combine"),
		filepath.Join(f.Paths.ModdedDir, "temp_src"),
	}, "scratch")
	f.printf("[OK] Temporary files cleaned up")
	return nil
}

// CleanupAll removes the temporary files and the whole modded directory.
func (f *Forge) CleanupAll(ctx context.Context, call pipeline.Call) error {
	f.section("Full cleanup...")

	if err := f.CleanupTempFiles(ctx, pipeline.Call{}); err != nil {
		return err
	}
	if _, err := os.Stat(f.Paths.ModdedDir); err == nil {
		if err := os.RemoveAll(f.Paths.ModdedDir); err != nil {
			return fmt.Errorf("remove %s: %w", f.Paths.ModdedDir, err)
		}
		f.printf("[OK] Removed %s", f.Paths.ModdedDir)
	}
	return nil
}

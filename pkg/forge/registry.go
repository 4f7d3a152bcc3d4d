package forge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/All1eexx/ApkForge/pkg/pipeline"
	"github.com/All1eexx/ApkForge/pkg/tools"
)

// Registry builds the step registry for this host: every step method under
// its snake_case name, the provider table for helper construction, and the
// helper classes from the tools package.
func (f *Forge) Registry() *pipeline.Registry {
	reg := pipeline.NewRegistry()

	steps := map[string]pipeline.StepFunc{
		"load_keystore_config":        f.LoadKeystoreConfig,
		"find_files":                  f.FindFiles,
		"prepare_decompile_directory": f.PrepareDecompileDirectory,
		"run_apktool_decompile":       f.RunApktoolDecompile,
		"count_decompiled_files":      f.CountDecompiledFiles,
		"verify_decompile_success":    f.VerifyDecompileSuccess,
		"copy_resources":              f.CopyResources,
		"update_apktool_yml":          f.UpdateApktoolYml,
		"update_strings":              f.UpdateStrings,
		"update_manifest":             f.UpdateManifest,
		"update_build_config":         f.UpdateBuildConfig,
		"build_unsigned_apk":          f.BuildUnsignedAPK,
		"build_signed_apk":            f.BuildSignedAPK,
		"zipalign_apk":                f.ZipalignApk,
		"sign_apk":                    f.SignApk,
		"verify_signature":            f.VerifySignature,
		"cleanup_temp_files":          f.CleanupTempFiles,
		"cleanup_all":                 f.CleanupAll,
		"list_apks":                   f.ListApks,
		"show_apk_info":               f.ShowApkInfo,
		"print_changed_values":        f.PrintChangedValues,
		"print_final_summary":         f.PrintFinalSummary,
	}
	for name, fn := range steps {
		reg.RegisterHost(name, fn)
	}

	f.registerProviders(reg)
	f.registerHelpers(reg)
	return reg
}

// registerProviders fills the table of recognized constructor parameters.
// Values come from live host state so helpers built mid-run see the files
// located by earlier steps.
func (f *Forge) registerProviders(reg *pipeline.Registry) {
	reg.Provide("modded_dir", func() any { return f.Paths.ModdedDir })
	reg.Provide("android_sdk", func() any { return f.Paths.AndroidSDK })
	reg.Provide("paths", func() any { return f.Paths })
	reg.Provide("config", func() any { return f.Config })
	reg.Provide("logger", func() any { return f.printf })
	reg.Provide("apktool_jar", func() any {
		if f.Found != nil && f.Found.ApktoolJar != "" {
			return f.Found.ApktoolJar
		}
		return f.Paths.ApktoolJar
	})
	reg.Provide("baksmali_jar", func() any {
		if f.Found != nil && f.Found.BaksmaliJar != "" {
			return f.Found.BaksmaliJar
		}
		return f.Paths.BaksmaliJar
	})
	reg.Provide("source_apk", func() any {
		if f.Found != nil {
			return f.Found.SourceAPK
		}
		return ""
	})
}

// registerHelpers exposes the tools package classes so pipelines can call
// them directly, e.g. "tools.Decompiler.decompile(out.apk, work)".
func (f *Forge) registerHelpers(reg *pipeline.Registry) {
	reg.RegisterHelper("tools", &pipeline.Helper{
		Name:     "Decompiler",
		Requires: []string{"apktool_jar"},
		New: func(deps map[string]any) (any, error) {
			jar := depString(deps, "apktool_jar")
			if jar == "" {
				return nil, fmt.Errorf("apktool jar is not available")
			}
			d := tools.NewDecompiler(jar, f.Exec)
			d.Log = f.printf
			return d, nil
		},
		Methods: map[string]pipeline.HelperMethod{
			"decompile": func(ctx context.Context, recv any, call pipeline.Call) error {
				d := recv.(*tools.Decompiler)
				source := call.Str(0, "")
				if source == "" {
					if f.Found == nil {
						return fmt.Errorf("no source APK; pass one or run find_files first")
					}
					source = f.Found.SourceAPK
				}
				return d.Decompile(ctx, source, call.Str(1, f.Paths.ModdedDir))
			},
		},
	})

	reg.RegisterHelper("tools", &pipeline.Helper{
		Name:     "ApkBuilder",
		Requires: []string{"apktool_jar"},
		New: func(deps map[string]any) (any, error) {
			jar := depString(deps, "apktool_jar")
			if jar == "" {
				return nil, fmt.Errorf("apktool jar is not available")
			}
			b := tools.NewApkBuilder(jar, f.Exec)
			b.Log = f.printf
			return b, nil
		},
		Methods: map[string]pipeline.HelperMethod{
			"build": func(ctx context.Context, recv any, call pipeline.Call) error {
				b := recv.(*tools.ApkBuilder)
				modded := call.Str(0, f.Paths.ModdedDir)
				output := call.Str(1, filepath.Join(f.Paths.ProjectRoot, unsignedAPKName))
				return b.Build(ctx, modded, output)
			},
		},
	})

	reg.RegisterHelper("tools", &pipeline.Helper{
		Name:     "ApkSigner",
		Requires: []string{"android_sdk"},
		New: func(deps map[string]any) (any, error) {
			sdk := depString(deps, "android_sdk")
			if sdk == "" {
				return nil, fmt.Errorf("Android SDK is not available")
			}
			s := tools.NewApkSigner(sdk, f.Exec)
			s.Log = f.printf
			return s, nil
		},
		Methods: map[string]pipeline.HelperMethod{
			"verify": func(ctx context.Context, recv any, call pipeline.Call) error {
				s := recv.(*tools.ApkSigner)
				apk := call.Str(0, f.signedAPK)
				if apk == "" {
					return fmt.Errorf("no APK to verify")
				}
				buildTools, err := s.FindBuildTools()
				if err != nil {
					return err
				}
				_, apksigner, err := s.LocateTools(buildTools)
				if err != nil {
					return err
				}
				return s.Verify(ctx, apksigner, apk)
			},
			"zipalign": func(ctx context.Context, recv any, call pipeline.Call) error {
				s := recv.(*tools.ApkSigner)
				input := call.Str(0, "")
				if input == "" {
					return fmt.Errorf("zipalign needs an input APK argument")
				}
				output := call.Str(1, filepath.Join(f.Paths.ProjectRoot, alignedAPKName))
				buildTools, err := s.FindBuildTools()
				if err != nil {
					return err
				}
				zipalign, _, err := s.LocateTools(buildTools)
				if err != nil {
					return err
				}
				return s.Zipalign(ctx, zipalign, input, output)
			},
		},
	})

	reg.RegisterHelper("tools", &pipeline.Helper{
		Name: "FileCleaner",
		New: func(deps map[string]any) (any, error) {
			c := tools.NewFileCleaner()
			c.Log = f.printf
			return c, nil
		},
		Methods: map[string]pipeline.HelperMethod{
			"cleanup_by_pattern": func(ctx context.Context, recv any, call pipeline.Call) error {
				c := recv.(*tools.FileCleaner)
				dir := call.Str(0, f.Paths.ProjectRoot)
				pattern := call.Str(1, "")
				if pattern == "" {
					return fmt.Errorf("cleanup_by_pattern needs a glob pattern argument")
				}
				c.CleanupByPattern(dir, pattern)
				return nil
			},
		},
	})
}

func depString(deps map[string]any, key string) string {
	s, _ := deps[key].(string)
	return s
}

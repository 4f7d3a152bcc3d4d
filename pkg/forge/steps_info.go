package forge

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/All1eexx/ApkForge/pkg/pipeline"
)

// ListApks prints the APK files in the project root, newest first.
func (f *Forge) ListApks(ctx context.Context, call pipeline.Call) error {
	apks, err := filepath.Glob(filepath.Join(f.Paths.ProjectRoot, "*.apk"))
	if err != nil {
		return err
	}
	if len(apks) == 0 {
		f.printf("No APK files found")
		return nil
	}

	type apkInfo struct {
		path    string
		size    float64
		modTime string
		sortKey int64
	}
	var infos []apkInfo
	for _, apk := range apks {
		st, err := os.Stat(apk)
		if err != nil {
			continue
		}
		infos = append(infos, apkInfo{
			path:    apk,
			size:    float64(st.Size()) / (1024 * 1024),
			modTime: st.ModTime().Format("2006-01-02 15:04"),
			sortKey: st.ModTime().UnixNano(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].sortKey > infos[j].sortKey })

	f.printf("")
	f.printf("APK files in project:")
	for _, info := range infos {
		f.printf("  %s %6.2f MB  %s", padName(filepath.Base(info.path), 50), info.size, info.modTime)
	}
	return nil
}

// ShowApkInfo prints size and location details for the signed APK, or for
// the APK given as first argument.
func (f *Forge) ShowApkInfo(ctx context.Context, call pipeline.Call) error {
	apkPath := call.Str(0, f.signedAPK)
	if apkPath == "" {
		f.warnf("No APK found")
		return nil
	}
	st, err := os.Stat(apkPath)
	if err != nil {
		f.warnf("No APK found at %s", apkPath)
		return nil
	}

	f.printf("")
	f.printf("APK: %s", filepath.Base(apkPath))
	f.printf("Size: %.2f MB", float64(st.Size())/(1024*1024))
	f.printf("Path: %s", apkPath)
	f.printf("Modified: %s", st.ModTime().Format("2006-01-02 15:04:05"))
	return nil
}

// PrintChangedValues prints the table of values rewritten by the patch
// steps.
func (f *Forge) PrintChangedValues(ctx context.Context, call pipeline.Call) error {
	f.printf("")
	f.printf("Changed Values:")
	f.printf("%s", strings.Repeat("-", 50))
	for _, c := range f.changed {
		f.printf("%s : %s -> %s", padName(c.Field, 35), c.Old, c.New)
	}
	return nil
}

// PrintFinalSummary prints the details of the finished signed APK.
func (f *Forge) PrintFinalSummary(ctx context.Context, call pipeline.Call) error {
	if f.signedAPK == "" {
		f.warnf("Signed APK not found or not created")
		return nil
	}
	sizeMB, err := fileSizeMB(f.signedAPK)
	if err != nil {
		f.warnf("Signed APK not found or not created")
		return nil
	}

	f.printf("")
	f.printf("%s", strings.Repeat("=", 50))
	f.printf("APK DETAILS")
	f.printf("%s", strings.Repeat("=", 50))
	f.printf("File Name       : %s", filepath.Base(f.signedAPK))
	f.printf("Full Path       : %s", f.signedAPK)
	f.printf("File Size       : %.2f MB", sizeMB)
	f.printf("Package Name    : %s", f.Config.ApplicationID)
	f.printf("Version Code    : %d", f.Config.VersionCode)
	f.printf("Version Name    : %s", f.Config.VersionName)
	f.printf("")
	f.printf("[OK] APK is ready and fully signed!")
	f.printf("%s", strings.Repeat("=", 50))
	return nil
}

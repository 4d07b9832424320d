// Package exclude implements the directory, file, and volatile-file skip
// policies applied during a scan, plus cloud-placeholder/sparse detection
// and the network-mount registry consulted by the orchestrator.
package exclude

import (
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/sift-inventory/sift/internal/pathnorm"
)

// Directory leaf names skipped entirely, case-insensitive. Informed by the
// default exclusion lists shipped with common backup tools (Backblaze, Arq,
// CrashPlan) and the VSS/Restic/Borg community exclusion lore.
var excludedDirNames = buildLowerSet([]string{
	// VCS
	".git", ".svn", ".hg", ".bzr",
	// Python tooling
	"__pycache__", ".mypy_cache", ".pytest_cache", ".ruff_cache", ".hypothesis",
	// Python virtual environments
	".venv", "venv",
	// Node
	"node_modules", ".yarn", ".npm", ".pnpm-store",
	// JVM build/package caches
	".gradle", ".m2",
	// Rust
	".cargo",
	// .NET
	".nuget",
	// Caches
	"Caches", "Cache", ".cache",
	// Linux thumbnail and font caches
	".thumbnails", "fontconfig", "mesa_shader_cache",
	// macOS system
	".Trash", ".trash", ".Spotlight-V100", ".fseventsd", ".DocumentRevisions-V100",
	".TemporaryItems", ".DS_Store",
	// macOS app internals
	"PhotoLibraryThumbnails",
	// macOS metadata injected into zip archives
	"__MACOSX",
	// Unix system
	"lost+found", "proc", "sys", "dev", "run",
	// Linux package systems
	"snap", ".var",
	// Windows
	"$RECYCLE.BIN", "System Volume Information",
	// Browser / Electron internal storage
	"CacheStorage", "Code Cache", "GPUCache", "ShaderCache", "DawnCache",
	"blob_storage", "IndexedDB", "Service Worker",
})

var excludedPathPrefixesPOSIX = []string{
	"/proc", "/sys", "/dev", "/run", "/tmp", "/snap",
	"/var/run", "/var/lock", "/var/tmp", "/var/cache",
}

var excludedPathPrefixesWindows = []string{
	"windows/system32", "windows/syswow64", "windows/winsxs", "windows/temp",
	"$recycle.bin", "system volume information",
}

// iCloud-managed directory trees on darwin: reading any file under these can
// trigger a cloud download of the real content.
var icloudPathSegments = []string{
	"/library/mail", "/library/messages", "/library/mobile documents",
	"/library/com.apple.deviceactivity",
}

var excludedFilenames = buildLowerSet([]string{
	".ds_store", "thumbs.db", "desktop.ini",
	"pagefile.sys", "hiberfil.sys", "swapfile.sys",
})

var excludedExtensions = map[string]struct{}{}

var volatileExtensions = map[string]struct{}{}

var volatileDirPatterns = []string{
	"*/virtualbox vms/*", "*/vmware/*", "*/parallels/*", "*/utm/*",
	"*/docker/*", "*/.docker/*", "*/containers/*",
	"*/.local/share/gnome-boxes/*",
}

func init() {
	for _, e := range strings.Fields("tmp temp swp swo lock lck pid part crdownload") {
		excludedExtensions[e] = struct{}{}
	}
	for _, e := range strings.Fields("vmdk vdi vhd vhdx qcow2 img ost nst pst") {
		volatileExtensions[e] = struct{}{}
	}
}

func buildLowerSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = struct{}{}
	}
	return m
}

// Options carries the host/runtime-dependent knobs the predicates need that
// aren't closed-form constants: whether this host is an Unraid server,
// whether its raw /mnt/diskN shares are opted in to scanning, and the
// Docker storage root to prune (empty when unknown).
type Options struct {
	IsUnraid           bool
	AllowUnraidRawDisk bool
	DockerRoot         string
}

// DetectUnraid reports whether /etc/unraid-version exists, the same signal
// the Unraid OS itself uses to identify its boot environment.
func DetectUnraid() bool {
	_, err := os.Stat("/etc/unraid-version")
	return err == nil
}

var unraidDiskPattern = regexp.MustCompile(`/mnt/disk\d+`)

// Dir returns true if dirpath (absolute, any case) should be pruned
// entirely from the walk. dirname is dirpath's basename.
func Dir(dirpath, dirname string, source pathnorm.SourceOS, opts Options) bool {
	if _, ok := excludedDirNames[strings.ToLower(dirname)]; ok {
		return true
	}

	pathLower := strings.ToLower(strings.ReplaceAll(dirpath, `\`, "/"))

	if source == pathnorm.Windows {
		if len(pathLower) >= 2 && pathLower[1] == ':' {
			pathLower = pathLower[2:]
		}
		for _, prefix := range excludedPathPrefixesWindows {
			if pathLower == prefix || strings.HasPrefix(pathLower, "/"+prefix) {
				return true
			}
		}
		if strings.HasPrefix(dirpath, `\\`) {
			return true
		}
		return false
	}

	for _, prefix := range excludedPathPrefixesPOSIX {
		if pathLower == prefix || strings.HasPrefix(pathLower, prefix+"/") {
			return true
		}
	}

	if source == pathnorm.Darwin {
		for _, seg := range icloudPathSegments {
			if strings.Contains(pathLower, seg) {
				return true
			}
		}
	}

	if source == pathnorm.Linux && opts.IsUnraid && !opts.AllowUnraidRawDisk {
		if unraidDiskPattern.MatchString(pathLower) {
			return true
		}
	}

	if underDockerRoot(pathLower, strings.ToLower(opts.DockerRoot)) {
		return true
	}

	return false
}

// File returns true if filename (with lowercased extension ext, no dot)
// should be skipped entirely, never recorded.
func File(filename, ext string) bool {
	if _, ok := excludedFilenames[strings.ToLower(filename)]; ok {
		return true
	}
	_, ok := excludedExtensions[ext]
	return ok
}

// VolatileActive returns true iff fpath is a volatile file (by extension or
// containing directory pattern) AND was modified within thresholdDays of
// now. Such files are recorded with skipped_reason=volatile_active and no
// hash is computed.
func VolatileActive(fpath, ext string, mtime time.Time, source pathnorm.SourceOS, thresholdDays int, now time.Time) bool {
	volatile := false
	if _, ok := volatileExtensions[ext]; ok {
		volatile = true
	} else {
		pathLower := strings.ToLower(strings.ReplaceAll(fpath, `\`, "/"))
		if source == pathnorm.Windows && len(pathLower) >= 2 && pathLower[1] == ':' {
			pathLower = pathLower[2:]
		}
		// Every pattern has the form */segment/*, where each * may span
		// path separators, so a match is a substring test on the middle.
		volatile = slices.ContainsFunc(volatileDirPatterns, func(pat string) bool {
			return strings.Contains(pathLower, strings.Trim(pat, "*"))
		})
	}
	if !volatile {
		return false
	}

	age := now.Sub(mtime)
	threshold := time.Duration(thresholdDays) * 24 * time.Hour
	return age < threshold
}

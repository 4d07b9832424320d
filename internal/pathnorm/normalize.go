// Package pathnorm normalizes filesystem paths and hostnames into the
// storage and display forms used by the inventory.
package pathnorm

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// SourceOS identifies the scanning host's platform, one of "linux",
// "darwin" or "windows", which determines drive-letter normalization.
type SourceOS string

const (
	Linux   SourceOS = "linux"
	Darwin  SourceOS = "darwin"
	Windows SourceOS = "windows"
)

// CurrentOS maps runtime.GOOS to the SourceOS tag stored in scan runs.
func CurrentOS() SourceOS {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "darwin":
		return Darwin
	default:
		return Linux
	}
}

// Hostname returns the short hostname, stripping any FQDN domain suffix.
func Hostname() (string, error) {
	h, err := os.Hostname()
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(h, '.'); i >= 0 {
		h = h[:i]
	}
	return h, nil
}

// Normalized is the triple stored for every file record: the lowercase,
// forward-slashed, drive-stripped storage key; the case-preserving display
// form; and the Windows drive letter (empty on POSIX hosts).
type Normalized struct {
	Path        string
	PathDisplay string
	Drive       string
}

// Path normalizes rawPath for the given source OS. path is the lowercase,
// forward-slash, drive-stripped primary-key form; pathDisplay preserves
// case; drive is the uppercase drive letter on Windows, empty on POSIX.
func Path(rawPath string, source SourceOS) Normalized {
	var display, drive string

	if source == Windows {
		display = strings.ReplaceAll(rawPath, `\`, "/")
		if strings.HasPrefix(display, "//?/") {
			display = display[4:]
		}
		if len(display) >= 2 && display[1] == ':' {
			drive = strings.ToUpper(display[:1])
			display = display[2:]
		}
	} else {
		display = rawPath
	}

	return Normalized{
		Path:        lowerCaser.String(display),
		PathDisplay: display,
		Drive:       drive,
	}
}

// ForStorage is Path using the host's own runtime OS.
func ForStorage(absPath string) Normalized {
	return Path(absPath, CurrentOS())
}

// SafePath returns a path safe for os.Stat/os.Open on Windows, adding the
// \\?\ long-path prefix (or \\?\UNC\ for a \\server\share network path)
// when needed. It is a no-op on POSIX.
func SafePath(rawPath string) string {
	if CurrentOS() != Windows {
		return rawPath
	}
	if strings.HasPrefix(rawPath, `\\?\`) {
		return rawPath
	}
	if strings.HasPrefix(rawPath, `\\`) {
		return `\\?\UNC\` + strings.TrimPrefix(rawPath, `\\`)
	}
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		abs = rawPath
	}
	return `\\?\` + abs
}

// QueryPath normalizes a user-supplied CLI/query path argument into the
// storage-key form: expands ~, resolves to an absolute path, then applies
// the same lowering rules as Path. Bare names with no leading /, ~, or .
// (e.g. "foo/bar") are treated as absolute inventory paths ("/foo/bar"),
// not as paths relative to the current working directory: the inventory
// has no notion of a scanning-time cwd to resolve them against.
func QueryPath(userPath string) (string, error) {
	p := strings.TrimSpace(userPath)
	if p == "" {
		return "", nil
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	} else if p[0] != '/' && p[0] != '.' && p[0] != filepath.Separator {
		p = "/" + p
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path may not exist yet (e.g. a trim scope under a deleted
		// directory); fall back to the unresolved absolute form.
		resolved = abs
	}

	n := Path(resolved, CurrentOS())
	return n.Path, nil
}

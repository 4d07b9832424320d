package exclude

import (
	"testing"
	"time"

	"github.com/sift-inventory/sift/internal/pathnorm"
)

func TestDirLeafName(t *testing.T) {
	if !Dir("/home/brian/project/.git", ".git", pathnorm.Linux, Options{}) {
		t.Error("expected .git to be excluded")
	}
	if !Dir("/home/brian/project/Node_Modules", "Node_Modules", pathnorm.Linux, Options{}) {
		t.Error("expected Node_Modules to match node_modules case-insensitively")
	}
	if Dir("/home/brian/project/src", "src", pathnorm.Linux, Options{}) {
		t.Error("expected src to not be excluded")
	}
}

func TestDirPathPrefixPOSIX(t *testing.T) {
	if !Dir("/proc/1", "1", pathnorm.Linux, Options{}) {
		t.Error("expected /proc to be excluded")
	}
	if !Dir("/var/cache/apt", "apt", pathnorm.Linux, Options{}) {
		t.Error("expected /var/cache/* to be excluded")
	}
	if Dir("/var/log/apt", "apt", pathnorm.Linux, Options{}) {
		t.Error("/var/log is not in the excluded prefix set")
	}
}

func TestDirPathPrefixWindows(t *testing.T) {
	if !Dir(`C:\Windows\System32\drivers`, "drivers", pathnorm.Windows, Options{}) {
		t.Error("expected Windows/System32/* to be excluded")
	}
	if Dir(`C:\Users\brian\Documents`, "Documents", pathnorm.Windows, Options{}) {
		t.Error("expected Documents to not be excluded")
	}
}

func TestDirICloudDarwin(t *testing.T) {
	if !Dir("/Users/brian/Library/Mobile Documents/com~apple~CloudDocs", "com~apple~CloudDocs", pathnorm.Darwin, Options{}) {
		t.Error("expected iCloud tree to be excluded on darwin")
	}
	if Dir("/Users/brian/Library/Mobile Documents", "Mobile Documents", pathnorm.Linux, Options{}) {
		t.Error("iCloud exclusion should not apply on linux")
	}
}

func TestDirUnraid(t *testing.T) {
	opts := Options{IsUnraid: true}
	if !Dir("/mnt/disk1/share", "share", pathnorm.Linux, opts) {
		t.Error("expected /mnt/disk1 to be excluded on an unraid host")
	}
	opts.AllowUnraidRawDisk = true
	if Dir("/mnt/disk1/share", "share", pathnorm.Linux, opts) {
		t.Error("expected raw-disk opt-in to permit /mnt/disk1")
	}
}

func TestFile(t *testing.T) {
	if !File("Thumbs.db", "db") {
		t.Error("expected Thumbs.db to be excluded")
	}
	if !File("session.lock", "lock") {
		t.Error("expected .lock extension to be excluded")
	}
	if File("photo.jpg", "jpg") {
		t.Error("expected photo.jpg to not be excluded")
	}
}

func TestVolatileActive(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	recent := now.Add(-1 * time.Hour)
	if !VolatileActive("/vms/disk.vmdk", "vmdk", recent, pathnorm.Linux, 7, now) {
		t.Error("expected recently-modified vmdk to be volatile-active")
	}

	old := now.Add(-30 * 24 * time.Hour)
	if VolatileActive("/vms/disk.vmdk", "vmdk", old, pathnorm.Linux, 7, now) {
		t.Error("expected old vmdk to not be volatile-active under a 7-day threshold")
	}

	if !VolatileActive("/srv/docker/volumes/x/_data/db.sqlite", "sqlite", recent, pathnorm.Linux, 7, now) {
		t.Error("expected file under a volatile dir pattern to be volatile-active")
	}

	if VolatileActive("/home/brian/notes.txt", "txt", recent, pathnorm.Linux, 7, now) {
		t.Error("expected ordinary file to not be volatile-active")
	}
}

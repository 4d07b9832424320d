//go:build linux

package exclude

import (
	"strings"
	"testing"
)

func TestParseProcMounts(t *testing.T) {
	sample := strings.NewReader(
		"/dev/sda1 / ext4 rw,relatime 0 0\n" +
			"nas:/export /mnt/nas nfs4 rw 0 0\n" +
			"//server/share /mnt/smb\\040share cifs rw 0 0\n")

	raw, err := parseProcMounts(sample)
	if err != nil {
		t.Fatalf("parseProcMounts: %v", err)
	}

	if raw["/"] != "ext4" {
		t.Errorf("/ fstype = %q, want ext4", raw["/"])
	}
	if raw["/mnt/nas"] != "nfs4" {
		t.Errorf("/mnt/nas fstype = %q, want nfs4", raw["/mnt/nas"])
	}
	if raw["/mnt/smb share"] != "cifs" {
		t.Errorf("decoded octal-escaped mountpoint missing: %+v", raw)
	}
}

func TestMountRegistryIsNetworkMount(t *testing.T) {
	r := newRegistry(map[string]string{
		"/":        "ext4",
		"/mnt/nas": "nfs4",
	})

	if r.IsNetworkMount("/home/brian/file.txt") {
		t.Error("local path under / reported as network mount")
	}
	if !r.IsNetworkMount("/mnt/nas/photos/a.jpg") {
		t.Error("path under nfs4 mount not reported as network mount")
	}
}

//go:build darwin

package exclude

import (
	"os/exec"
	"regexp"
)

// mountLineRE matches `mount` output lines like:
//
//	/dev/disk1s1 on / (apfs, local, journaled)
//	nas:/export on /Volumes/nas (nfs, nodev, nosuid)
var mountLineRE = regexp.MustCompile(`^\S+ on (.+) \(([^,)]+)[,)]`)

// NewMountRegistry builds the network-mount lookup table from the `mount`
// command's output, the only portable way to enumerate mounts on darwin
// (there is no /proc/mounts equivalent).
func NewMountRegistry() (*MountRegistry, error) {
	out, err := exec.Command("mount").Output()
	if err != nil {
		return nil, err
	}
	return newRegistry(parseMountOutput(string(out))), nil
}

func parseMountOutput(s string) map[string]string {
	raw := make(map[string]string)
	for _, line := range regexp.MustCompile(`\r?\n`).Split(s, -1) {
		m := mountLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		raw[m[1]] = m[2]
	}
	return raw
}

package exclude

import "strings"

// MountRegistry maps mount points to filesystem types, built once per
// process and consulted by longest-matching-prefix lookup.
type MountRegistry struct {
	mounts []mountEntry
}

type mountEntry struct {
	point  string
	fstype string
}

var networkFSTypes = map[string]struct{}{
	"nfs": {}, "nfs4": {}, "cifs": {}, "smbfs": {}, "afp": {}, "afs": {}, "ncpfs": {}, "9p": {},
	"fuse.sshfs": {}, "fuse.rclone": {}, "fuse.s3fs": {}, "fuse.gcsfuse": {}, "fuse.nfs": {},
}

func newRegistry(raw map[string]string) *MountRegistry {
	r := &MountRegistry{}
	for point, fstype := range raw {
		r.mounts = append(r.mounts, mountEntry{point: strings.ToLower(point), fstype: fstype})
	}
	return r
}

// IsNetworkMount reports whether path lives under a mount point whose
// filesystem type is one of the known remote/network types, using
// longest-matching mount-point prefix to resolve nested mounts correctly.
func (r *MountRegistry) IsNetworkMount(path string) bool {
	pathLower := strings.ToLower(strings.ReplaceAll(path, `\`, "/"))

	best := mountEntry{}
	bestLen := -1
	for _, m := range r.mounts {
		if m.point == "/" {
			if bestLen < 1 {
				best, bestLen = m, 1
			}
			continue
		}
		if pathLower == m.point || strings.HasPrefix(pathLower, m.point+"/") {
			if len(m.point) > bestLen {
				best, bestLen = m, len(m.point)
			}
		}
	}
	if bestLen < 0 {
		return false
	}
	_, ok := networkFSTypes[best.fstype]
	return ok
}

package exclude

import (
	"context"
	"strings"
	"sync"

	"github.com/docker/docker/client"
)

var (
	dockerRootOnce sync.Once
	dockerRootDir  string
)

// DockerStorageRoot returns the local Docker daemon's configured storage
// root (e.g. /var/lib/docker). A scan prunes it for the same
// reason it prunes /proc or /sys: it holds overlay/image layers the daemon
// itself owns, not user data, and walking it is both slow and pointless.
//
// The daemon is queried once per process over its local socket and the
// result cached. If no daemon is reachable, or the client can't be built
// at all, it returns "", false and the caller proceeds with no additional
// exclusion; this must never fail a scan on a host with no Docker installed.
func DockerStorageRoot(ctx context.Context) (string, bool) {
	dockerRootOnce.Do(func() {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return
		}
		defer cli.Close()

		info, err := cli.Info(ctx)
		if err != nil {
			return
		}
		dockerRootDir = info.DockerRootDir
	})
	return dockerRootDir, dockerRootDir != ""
}

func underDockerRoot(pathLower, root string) bool {
	if root == "" {
		return false
	}
	rootLower := strings.ToLower(strings.ReplaceAll(root, `\`, "/"))
	return pathLower == rootLower || strings.HasPrefix(pathLower, rootLower+"/")
}

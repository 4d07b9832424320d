//go:build !windows

package exclude

// WindowsCloudPlaceholder is always false outside Windows.
func WindowsCloudPlaceholder(path string) bool {
	return false
}

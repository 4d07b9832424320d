//go:build windows

package exclude

import (
	"os"

	"golang.org/x/sys/windows"
)

const (
	fileAttributeRecallOnDataAccess = 0x400000
	fileAttributeOffline            = 0x40000
)

// WindowsCloudPlaceholder reports whether path carries the OneDrive
// Files-On-Demand placeholder attribute combination.
func WindowsCloudPlaceholder(path string) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil || attrs == windows.INVALID_FILE_ATTRIBUTES {
		return false
	}
	return attrs&(fileAttributeRecallOnDataAccess|fileAttributeOffline) != 0
}

// SparseFile is always false on Windows: the cloud-placeholder attribute
// check above is the Windows-native signal for this condition instead.
func SparseFile(fi os.FileInfo) bool {
	return false
}

// InodeDevice is unavailable through os.FileInfo on Windows without opening
// the file for a BY_HANDLE_FILE_INFORMATION query; the scanner falls back
// to content hashing without hard-link reuse on this platform.
func InodeDevice(fi os.FileInfo) (inode, device uint64, ok bool) {
	return 0, 0, false
}

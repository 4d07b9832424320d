//go:build windows

package exclude

import (
	"fmt"

	"github.com/yusufpapurcu/wmi"
)

// win32LogicalDisk mirrors the subset of Win32_LogicalDisk used to tell
// local fixed drives from network shares. DriveType 4 is DRIVE_REMOTE.
type win32LogicalDisk struct {
	DeviceID  string
	DriveType uint32
}

const driveTypeRemote = 4

// NewMountRegistry builds the network-mount lookup table from WMI
// (Win32_LogicalDisk), the kernel-level equivalent of GetDriveTypeW for
// every mounted drive letter in one query.
func NewMountRegistry() (*MountRegistry, error) {
	var disks []win32LogicalDisk
	if err := wmi.Query("SELECT DeviceID, DriveType FROM Win32_LogicalDisk", &disks); err != nil {
		return nil, fmt.Errorf("WMI query failed: %w", err)
	}

	raw := make(map[string]string, len(disks))
	for _, d := range disks {
		fstype := "local"
		if d.DriveType == driveTypeRemote {
			fstype = "cifs"
		}
		raw[d.DeviceID] = fstype
	}
	return newRegistry(raw), nil
}

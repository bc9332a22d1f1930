//go:build unix

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// permissionBits reports the POSIX owner/group/other octal permission bits
// underlying info, the detail os.FileInfo.Mode() folds into its own
// abbreviated, platform-neutral bit layout.
func permissionBits(info os.FileInfo) uint32 {
	if stat, ok := info.Sys().(*unix.Stat_t); ok {
		return uint32(stat.Mode) & 0o777
	}
	return uint32(info.Mode().Perm())
}

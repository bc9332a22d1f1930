//go:build !unix

package file

import "os"

// permissionBits falls back to Go's own portable permission bits on
// platforms without a POSIX stat struct to read.
func permissionBits(info os.FileInfo) uint32 {
	return uint32(info.Mode().Perm())
}

//go:build unix

package logwatch

import (
	"os"
	"syscall"
)

// fileIdentity returns the inode as the rotation-detection token.
func fileIdentity(info os.FileInfo) int64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return int64(st.Ino)
	}
	return 1
}

//go:build unix

package copier

import (
	"fmt"
	"os"
	"syscall"

	"github.com/dustin/go-humanize"
)

// creationUnix returns the platform stat's ctime as the practical
// proxy for creation time (spec §4.4's ordering invariant): Go's
// stdlib os.FileInfo carries no portable birth-time field, and for
// unmodified camera-origin footage ctime tracks shooting order as well
// as a true birth time would.
func creationUnix(info os.FileInfo) int64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return int64(stat.Ctim.Sec)
	}
	return info.ModTime().Unix()
}

func checkFreeSpace(dir string, folderSizeGB float64) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("copier: statfs %s: %w", dir, err)
	}
	freeBytes := uint64(stat.Bavail) * uint64(stat.Bsize)
	needed := uint64(folderSizeGB * (1 << 30))
	if freeBytes < needed {
		return fmt.Errorf("copier: insufficient free space at %s: have %s, need %s",
			dir, humanize.Bytes(freeBytes), humanize.Bytes(needed))
	}
	return nil
}

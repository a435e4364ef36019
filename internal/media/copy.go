package media

import (
	"context"
	"io"
	"os"

	"github.com/gwlsn/dvdarchive/internal/taskdef"
)

// copyChunkSize bounds a single Read/Write iteration so the cancellation
// poll below can actually run between chunks on very large source files.
const copyChunkSize = 4 * 1024 * 1024

// CopyFile copies src to dst verbatim, honoring cancelled between
// chunks, for the "source already matches the target codec" fast path
// (spec §4.5's copy_file task). The video file copier (C6) does its own
// copying and does not use it.
func (t *FFTool) CopyFile(ctx context.Context, cancelled *taskdef.CancelFlag, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return newError(KindPreflight, "failed to open source", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return newError(KindPreflight, "failed to create destination", err)
	}
	defer out.Close()

	buf := make([]byte, copyChunkSize)
	for {
		if ctx.Err() != nil {
			return newError(KindCancelled, "copy cancelled", ctx.Err())
		}
		if cancelled != nil && cancelled.Cancelled() {
			return newError(KindCancelled, "copy cancelled", nil)
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return newError(KindToolFailure, "failed writing destination", writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return newError(KindToolFailure, "failed reading source", readErr)
		}
	}

	if err := out.Sync(); err != nil {
		return newError(KindToolFailure, "failed to flush destination", err)
	}
	return nil
}

package media

import (
	"context"
	"fmt"
	"os"

	"github.com/gwlsn/dvdarchive/internal/taskdef"
)

// Concatenate joins files (already in matching codec/format, the cut
// engine's own invariant) into out via ffmpeg's concat demuxer, the
// final step of the cut engine's head/middle/tail assembly (spec §4.3
// step 5). When deleteTemps is set the source files are removed after a
// successful concat, matching the teacher's "clean up after a
// successful operation, leave evidence behind after a failed one" habit
// in transcode.go.
func (t *FFTool) Concatenate(ctx context.Context, cancelled *taskdef.CancelFlag, files []string, out string, deleteTemps bool) error {
	listFile, err := writeConcatList(files)
	if err != nil {
		return newError(KindInternal, "failed to write concat list", err)
	}
	defer os.Remove(listFile)

	args := []string{
		"-y", "-hide_banner",
		"-f", "concat", "-safe", "0",
		"-i", listFile,
		"-c", "copy",
		out,
	}
	res, runErr := runExternal(ctx, cancelled, t.FFmpegPath, args)
	if cerr := resultToErr(res, runErr, "concat"); cerr != nil {
		return cerr
	}

	if deleteTemps {
		for _, f := range files {
			_ = os.Remove(f)
		}
	}
	return nil
}

func writeConcatList(files []string) (string, error) {
	f, err := os.CreateTemp("", "dvdarchive-concat-*.txt")
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, path := range files {
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapeConcatPath(path)); err != nil {
			return "", err
		}
	}
	return f.Name(), nil
}

// escapeConcatPath escapes single quotes for ffmpeg's concat demuxer
// list file grammar, which otherwise treats a bare "'" as ending the
// quoted path early.
func escapeConcatPath(path string) string {
	out := make([]byte, 0, len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, path[i])
	}
	return string(out)
}

// Package media implements the MediaTool adapter (spec §4.7, C1): the
// sole boundary between the core and the external media toolchain
// (ffprobe/ffmpeg/genisoimage). Grounded on the teacher's
// internal/ffmpeg package (Prober/Transcoder wrapping os/exec,
// structured logging of the command line, progress parsing from
// ffmpeg's `-progress pipe:1` key=value stream) and extended with the
// external-process exit-code convention spec §6.3 requires, plus
// cooperative cancellation with a signal-then-kill grace period
// (golang.org/x/sys/unix process-group signalling, in the manner of
// five82-reel's own subprocess handling).
package media

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/gwlsn/dvdarchive/internal/logger"
	"github.com/gwlsn/dvdarchive/internal/taskdef"
)

// pollInterval is how often a running external process is checked for
// cooperative cancellation (spec §5: "~10ms granularity is adequate").
const pollInterval = 10 * time.Millisecond

// killGrace is how long terminate() is given to work before forceKill.
const killGrace = 3 * time.Second

// runExternal executes name with args, honoring cancelled between
// subprocess-wait poll iterations, and returns the result tuple spec
// §6.3 defines:
//
//	(1, stdout)          success, or exit code in {0,1} (encoder warnings tolerated at 1)
//	(-1, message)         other non-zero exit (127 = not found, <=125 = command failed, >125 = crashed)
//	(-2, partial_stdout)  cooperative cancellation
func runExternal(ctx context.Context, cancelled *taskdef.CancelFlag, name string, args []string) (taskdef.Result, error) {
	cmd := exec.Command(name, args...)
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("media: running external tool", "tool", name, "args", args)

	if err := cmd.Start(); err != nil {
		return taskdef.Result{Code: -1, Message: err.Error()}, newError(KindToolFailure, "failed to start "+name, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-waitCh:
			return classifyExit(err, stdout.String(), stderr.String())
		case <-ctx.Done():
			return cancelProcess(cmd, waitCh, stdout.String())
		case <-ticker.C:
			if cancelled != nil && cancelled.Cancelled() {
				return cancelProcess(cmd, waitCh, stdout.String())
			}
		}
	}
}

func cancelProcess(cmd *exec.Cmd, waitCh <-chan error, partial string) (taskdef.Result, error) {
	terminate(cmd)
	select {
	case <-waitCh:
	case <-time.After(killGrace):
		forceKill(cmd)
		<-waitCh
	}
	return taskdef.Result{Code: taskdef.CodeCancelledMidStream, Message: partial}, nil
}

func classifyExit(waitErr error, stdout, stderr string) (taskdef.Result, error) {
	if waitErr == nil {
		return taskdef.Result{Code: taskdef.CodeSuccess, Message: stdout}, nil
	}
	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		return taskdef.Result{Code: -1, Message: waitErr.Error()}, newError(KindToolFailure, waitErr.Error(), waitErr)
	}
	code := exitErr.ExitCode()
	if code == 1 {
		// Encoder warnings tolerated at exit code 1.
		return taskdef.Result{Code: taskdef.CodeSuccess, Message: stdout}, nil
	}
	reason := "command failed"
	switch {
	case code == 127:
		reason = "tool not found"
	case code > 125:
		reason = "tool crashed"
	}
	return taskdef.Result{Code: -1, Message: stderr}, newError(KindToolFailure, reason, waitErr)
}

// progressLines reads ffmpeg's `-progress pipe:1` key=value stream,
// calling onLine for each complete line. Mirrors the teacher's
// transcode.go progress scanner.
func progressLines(r io.Reader, onLine func(line string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
}

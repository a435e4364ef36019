package media

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/gwlsn/dvdarchive/internal/taskdef"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// TranscodeH26x produces either a streaming proxy (H.264, standard GOP)
// or a preservation master (H.264/H.265, optionally 10-bit, optionally
// all-I) per opts, grounded on the teacher's transcode.go preset
// selection (internal/ffmpeg/presets.go) adapted from quality-ladder
// presets to the archive pipeline's stream/transcode task split (spec
// §4.5).
func (t *FFTool) TranscodeH26x(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts H26xOptions) (string, error) {
	container := opts.Container
	if container == "" {
		container = "mp4"
	}
	out := filepath.Join(outDir, opts.OutputName+"."+container)

	codec := "libx264"
	if opts.HEVC {
		codec = "libx265"
	}

	args := []string{"-y", "-hide_banner", "-i", in, "-c:v", codec}

	if opts.IFrameOnly {
		args = append(args, "-g", "1", "-bf", "0")
	}
	if opts.TenBit {
		args = append(args, "-pix_fmt", "yuv420p10le", "-profile:v", "main10")
	}
	if opts.HighQuality {
		args = append(args, "-preset", "slow", "-crf", "16")
	} else {
		args = append(args, "-preset", "medium", "-crf", "20")
	}
	args = append(args, "-c:a", "aac", "-b:a", "192k", out)

	res, err := runExternal(ctx, cancelled, t.FFmpegPath, args)
	if cerr := resultToErr(res, err, "h26x transcode"); cerr != nil {
		return "", cerr
	}
	return out, nil
}

// TranscodeFFV1 produces a lossless FFV1-in-MKV archival master, used
// when the build's preservation codec is ffv1 (spec §4.5 preservation
// master task).
func (t *FFTool) TranscodeFFV1(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts FFV1Options) (string, error) {
	out := filepath.Join(outDir, opts.OutputName+".mkv")
	args := []string{
		"-y", "-hide_banner", "-i", in,
		"-c:v", "ffv1", "-level", "3", "-g", "1", "-slicecrc", "1",
		"-c:a", "copy",
		out,
	}
	res, err := runExternal(ctx, cancelled, t.FFmpegPath, args)
	if cerr := resultToErr(res, err, "ffv1 transcode"); cerr != nil {
		return "", cerr
	}
	return out, nil
}

// TranscodeDV produces a DV-format intermediate at exactly fr/w/h, used
// for legacy deliverables where the DVD target format requires it (spec
// §4.5's format-specific deliverable list).
func (t *FFTool) TranscodeDV(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, fr videoref.Rational, w, h int) (string, error) {
	out := filepath.Join(outDir, "dv_master.dv")
	args := []string{
		"-y", "-hide_banner", "-i", in,
		"-s", videoRefSize(w, h),
		"-r", fr.String(),
		"-c:v", "dvvideo", "-c:a", "pcm_s16le",
		out,
	}
	res, err := runExternal(ctx, cancelled, t.FFmpegPath, args)
	if cerr := resultToErr(res, err, "dv transcode"); cerr != nil {
		return "", cerr
	}
	return out, nil
}

// TranscodeMezzanine produces an edit-friendly intermediate (DNxHR or
// ProRes). The cut engine does not call it; its re-encode segments use
// ReencodeSegment with the source codec.
func (t *FFTool) TranscodeMezzanine(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts MezzanineOptions) (string, error) {
	out := filepath.Join(outDir, opts.OutputName+".mov")
	codec := opts.Codec
	if codec == "" {
		codec = "dnxhr"
	}

	args := []string{"-y", "-hide_banner", "-i", in}
	switch codec {
	case "prores":
		args = append(args, "-c:v", "prores_ks", "-profile:v", "3")
	default:
		args = append(args, "-c:v", "dnxhd", "-profile:v", "dnxhr_hq", "-pix_fmt", "yuv422p")
	}
	args = append(args, "-c:a", "pcm_s16le", out)

	res, err := runExternal(ctx, cancelled, t.FFmpegPath, args)
	if cerr := resultToErr(res, err, "mezzanine transcode"); cerr != nil {
		return "", cerr
	}
	return out, nil
}

func videoRefSize(w, h int) string {
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}

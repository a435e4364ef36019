package media

import (
	"context"
	"strconv"

	"github.com/gwlsn/dvdarchive/internal/taskdef"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// CutStreamCopy extracts [StartSecond, EndSecond) from Input into Output
// without re-encoding, seeking on the nearest keyframe (the cut engine's
// middle segment, its all-intra shortcut, and its final-window
// extraction). Grounded on the
// teacher's transcode.go argument-building style, adapted to -c copy.
func (t *FFTool) CutStreamCopy(ctx context.Context, cancelled *taskdef.CancelFlag, spec CutSpec) error {
	args := []string{
		"-y", "-hide_banner",
		"-ss", formatSeconds(spec.StartSecond),
		"-i", spec.Input,
		"-to", formatSeconds(spec.EndSecond - spec.StartSecond),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		spec.Output,
	}
	res, err := runExternal(ctx, cancelled, t.FFmpegPath, args)
	return resultToErr(res, err, "stream-copy cut")
}

// ReencodeSegment re-encodes [StartSecond, EndSecond) frame-accurately,
// forcing an all-I-frame GOP structure sized to gopSize so the segment
// can be concatenated with neighboring stream-copy segments without a
// decoder reset (the cut engine's head and tail re-encode segments).
// Per spec §4.3 step 5, the re-encode must preserve codec, pix_fmt,
// bitrate, dimensions, and scan order from the probe so the segment
// doesn't diverge in quality or size from the stream-copied segments
// it's concatenated with.
func (t *FFTool) ReencodeSegment(ctx context.Context, cancelled *taskdef.CancelFlag, spec CutSpec, info *videoref.EncodingInfo, gopSize int) error {
	if gopSize <= 0 {
		gopSize = 1
	}
	args := []string{
		"-y", "-hide_banner",
		"-ss", formatSeconds(spec.StartSecond),
		"-i", spec.Input,
		"-to", formatSeconds(spec.EndSecond - spec.StartSecond),
		"-c:v", encoderForCodec(info.Codec),
		"-pix_fmt", info.PixelFormat,
		"-s", videoRefSize(info.Width, info.Height),
	}
	if info.Bitrate > 0 {
		args = append(args, "-b:v", strconv.FormatInt(info.Bitrate, 10))
	}
	args = append(args, fieldOrderArgs(info)...)
	args = append(args,
		"-g", strconv.Itoa(gopSize),
		"-keyint_min", strconv.Itoa(gopSize),
		"-sc_threshold", "0",
		"-c:a", "copy",
		spec.Output,
	)
	res, err := runExternal(ctx, cancelled, t.FFmpegPath, args)
	return resultToErr(res, err, "re-encode segment")
}

// encoderForCodec maps a probed ffprobe codec_name to the ffmpeg
// encoder that produces it, per the same codec-to-encoder convention
// TranscodeH26x uses (h264/hevc -> libx264/libx265); a probed codec
// whose encoder shares the codec_name (e.g. mpeg2video, mpeg4, ffv1)
// passes through unchanged.
func encoderForCodec(codec string) string {
	switch codec {
	case "h264":
		return "libx264"
	case "hevc":
		return "libx265"
	case "vp8":
		return "libvpx"
	case "vp9":
		return "libvpx-vp9"
	case "av1":
		return "libaom-av1"
	default:
		return codec
	}
}

// fieldOrderArgs emits the ffmpeg flags that preserve an interlaced
// source's field order through re-encode: -flags +ildct+ilme forces
// interlace-aware encoding, and -top pins the top-field-first bit to
// match the probed scan order.
func fieldOrderArgs(info *videoref.EncodingInfo) []string {
	if info.ScanType != videoref.ScanInterlaced {
		return nil
	}
	top := "1"
	if info.ScanOrder == videoref.ScanOrderBFF {
		top = "0"
	}
	return []string{"-flags", "+ildct+ilme", "-top", top}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}

// resultToErr folds a Result/error pair from runExternal into the single
// classified error MediaTool methods return, per spec §7.
func resultToErr(res taskdef.Result, err error, op string) error {
	if err != nil {
		return err
	}
	switch res.Code {
	case taskdef.CodeSuccess:
		return nil
	case taskdef.CodeCancelledMidStream:
		return newError(KindCancelled, op+" cancelled", nil)
	default:
		return newError(KindToolFailure, op+" failed: "+res.Message, nil)
	}
}

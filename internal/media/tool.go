package media

import (
	"context"

	"github.com/gwlsn/dvdarchive/internal/taskdef"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// FrameInfo is one decoded frame's metadata, as reported by ffprobe's
// frame-level JSON output (spec §4.7's probe_frames).
type FrameInfo struct {
	PictType      string // "I", "P", "B"
	KeyFrame      bool
	PTS           int64
	PTSTime       float64
	PktPos        int64
	Interlaced    bool
	TopFieldFirst bool
}

// H26xOptions parameterizes TranscodeH26x (spec §4.5's stream/transcode
// tasks: streaming proxy is H.264 non-iframe-only; preservation master
// can be H.264 or H.265 10-bit all-I).
type H26xOptions struct {
	HEVC         bool // false = H.264, true = H.265
	HighQuality  bool
	IFrameOnly   bool
	TenBit       bool
	Container    string // "mp4" or "mkv"
	OutputName   string // base name (without extension) written into outDir
}

// FFV1Options parameterizes TranscodeFFV1 (lossless archival master).
type FFV1Options struct {
	OutputName string
}

// MezzanineOptions parameterizes TranscodeMezzanine (edit-friendly
// intermediate encode).
type MezzanineOptions struct {
	OutputName string
	Codec      string // e.g. "dnxhr", "prores"
}

// CutSpec is the input to the cut engine's low-level stream-copy and
// re-encode calls.
type CutSpec struct {
	Input       string
	Output      string
	StartSecond float64
	EndSecond   float64
}

// Tool is the MediaTool interface (spec §4.7, C1): the only boundary
// between the core and the external media toolchain. Implementations
// must classify failures per the Kind values in errors.go rather than
// surfacing raw tool error strings.
type Tool interface {
	Probe(ctx context.Context, path string) (*videoref.EncodingInfo, error)
	ProbeFrames(ctx context.Context, path string, startSecond, windowSeconds float64) ([]FrameInfo, error)

	CutStreamCopy(ctx context.Context, cancelled *taskdef.CancelFlag, spec CutSpec) error
	ReencodeSegment(ctx context.Context, cancelled *taskdef.CancelFlag, spec CutSpec, info *videoref.EncodingInfo, gopSize int) error

	TranscodeH26x(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts H26xOptions) (string, error)
	TranscodeFFV1(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts FFV1Options) (string, error)
	TranscodeDV(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, fr videoref.Rational, w, h int) (string, error)
	TranscodeMezzanine(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts MezzanineOptions) (string, error)

	Concatenate(ctx context.Context, cancelled *taskdef.CancelFlag, files []string, out string, deleteTemps bool) error
	MakeISO(ctx context.Context, inDir, outISO string) error

	// CopyFile is the fallback "no transcode needed" path used when a
	// source is already in the target codec (spec §4.5's copy_file task).
	CopyFile(ctx context.Context, cancelled *taskdef.CancelFlag, src, dst string) error
}
